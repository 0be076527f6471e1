package status

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"firesync/cmd/cmdutil"
	"firesync/cmd/version"
	"firesync/internal/config"
	"firesync/internal/models"
	"firesync/internal/repository"

	"github.com/spf13/cobra"
)

var (
	formatFlag string
	recentFlag int
	checkFlag  bool
)

var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connection settings, targets and the sync ledger",
	Example: `  firesync status
  firesync status --check --format yaml`,
	Args: cobra.NoArgs,
	RunE: run,
}

func init() {
	StatusCmd.Flags().StringVarP(&formatFlag, "format", "f", cmdutil.FormatTable, "output format (table|json|yaml)")
	StatusCmd.Flags().IntVarP(&recentFlag, "recent", "n", 10, "number of recent ledger records to show")
	StatusCmd.Flags().BoolVar(&checkFlag, "check", false, "probe the Firestore connection")
}

type Connection struct {
	ProjectID   string `json:"project_id" yaml:"project_id"`
	DatabaseID  string `json:"database_id" yaml:"database_id"`
	Credentials string `json:"credentials" yaml:"credentials"`
	Emulator    string `json:"emulator,omitempty" yaml:"emulator,omitempty"`
	Transport   string `json:"transport" yaml:"transport"`
	CMS         string `json:"cms" yaml:"cms"`
	Ledger      string `json:"ledger" yaml:"ledger"`
	Reachable   *bool  `json:"reachable,omitempty" yaml:"reachable,omitempty"`
	ProbeError  string `json:"probe_error,omitempty" yaml:"probe_error,omitempty"`
}

type Report struct {
	Version      string                     `json:"version" yaml:"version"`
	Connection   Connection                 `json:"connection" yaml:"connection"`
	Taxonomies   []config.TaxonomyConfig    `json:"taxonomies" yaml:"taxonomies"`
	ContentTypes []config.ContentTypeConfig `json:"content_types" yaml:"content_types"`
	Ledger       map[models.SyncStatus]int  `json:"ledger" yaml:"ledger"`
	Recent       []models.SyncRecord        `json:"recent" yaml:"recent"`
}

func run(cmd *cobra.Command, _ []string) error {
	if err := cmdutil.ValidateFormat(formatFlag); err != nil {
		return err
	}
	wiring, err := cmdutil.Bootstrap()
	if err != nil {
		return err
	}
	defer wiring.Close()

	ctx := cmd.Context()
	ledger, err := wiring.InitLedger(ctx)
	if err != nil {
		return err
	}
	report, err := BuildReport(ctx, wiring.GetConfig(), ledger, recentFlag)
	if err != nil {
		return err
	}

	if checkFlag {
		connection, err := wiring.InitProbe(ctx)
		if err != nil {
			return err
		}
		ok := true
		if err := connection.CheckWithError(ctx); err != nil {
			ok = false
			report.Connection.ProbeError = err.Error()
		}
		report.Connection.Reachable = &ok
	}

	return cmdutil.Render(cmd.OutOrStdout(), formatFlag, report, func(w io.Writer) {
		WriteTable(w, report)
	})
}

// BuildReport collects the status of cfg and the ledger.
func BuildReport(ctx context.Context, cfg *config.Config, ledger repository.SyncRecordRepository, recent int) (*Report, error) {
	counts, err := ledger.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count sync records: %w", err)
	}
	records, err := ledger.ListSyncRecords(ctx, recent)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync records: %w", err)
	}

	return &Report{
		Version:      version.GetVersion(),
		Connection:   connection(cfg),
		Taxonomies:   cfg.Taxonomies,
		ContentTypes: cfg.ContentTypes,
		Ledger:       counts,
		Recent:       records,
	}, nil
}

func connection(cfg *config.Config) Connection {
	fs := cfg.Firestore
	c := Connection{
		ProjectID:  fs.ProjectID,
		DatabaseID: fs.DatabaseID,
		Transport:  fs.Transport,
		CMS:        cfg.CMS.BaseURL,
		Ledger:     "memory",
	}
	switch {
	case fs.Emulator.Enabled:
		c.Credentials = "none (emulator)"
		c.Emulator = fs.Emulator.Host + ":" + strconv.Itoa(fs.Emulator.Port)
	case fs.ServiceAccountJSON != "":
		c.Credentials = "service account (inline)"
	default:
		c.Credentials = "service account file " + fs.ServiceAccountFile
	}
	if cfg.Postgres != nil {
		c.Ledger = fmt.Sprintf("postgres %s:%d/%s", cfg.Postgres.Address, cfg.Postgres.Port, cfg.Postgres.DBName)
	}
	return c
}

func WriteTable(w io.Writer, report *Report) {
	c := report.Connection
	rows := [][2]string{
		{"version", report.Version},
		{"project", c.ProjectID},
		{"database", c.DatabaseID},
		{"credentials", c.Credentials},
		{"emulator", cmdutil.Dash(c.Emulator)},
		{"transport", c.Transport},
		{"cms", c.CMS},
		{"ledger", c.Ledger},
	}
	if c.Reachable != nil {
		reachable := strconv.FormatBool(*c.Reachable)
		if c.ProbeError != "" {
			reachable += " (" + c.ProbeError + ")"
		}
		rows = append(rows, [2]string{"reachable", reachable})
	}
	cmdutil.KeyValueTable(w, rows)
	fmt.Fprintln(w)

	targets := cmdutil.NewTable(w, "Kind", "Target", "Settings")
	for _, t := range report.Taxonomies {
		targets.Append([]string{string(models.TargetTaxonomy), t.Slug, t.OrderField + " " + t.OrderDirection})
	}
	for _, ct := range report.ContentTypes {
		targets.Append([]string{string(models.TargetContentType), ct.Slug, cmdutil.Dash(strings.Join(ct.Fields, ", "))})
	}
	targets.Render()
	fmt.Fprintln(w)

	summary := cmdutil.NewTable(w, "Status", "Documents")
	for _, s := range []models.SyncStatus{models.StatusSuccess, models.StatusDeleted, models.StatusSkipped, models.StatusFailed} {
		summary.Append([]string{s.String(), strconv.Itoa(report.Ledger[s])})
	}
	summary.Render()

	if len(report.Recent) == 0 {
		return
	}
	fmt.Fprintln(w)
	recent := cmdutil.NewTable(w, "Path", "Status", "Last Attempt", "Error")
	for _, r := range report.Recent {
		msg := ""
		if r.ErrorMessage != nil {
			msg = *r.ErrorMessage
		}
		recent.Append([]string{r.RemotePath, r.Status.String(), r.LastSyncAttempt.Format(time.RFC3339), cmdutil.Dash(msg)})
	}
	recent.Render()
}
