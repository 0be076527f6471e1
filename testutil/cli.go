package testutil

import (
	"net/url"
	"strconv"
	"testing"

	"github.com/spf13/viper"
)

// UseFakesInGlobalConfig resets the global viper and points it at the fake
// document store, through the emulator settings, and at the fake WordPress
// site. Extra settings are applied last. The global viper is reset again
// when the test ends.
func UseFakesInGlobalConfig(t testing.TB, fs *FakeFirestore, wp *FakeWordPress, extra map[string]any) {
	t.Helper()
	u, err := url.Parse(fs.Server.URL)
	if err != nil {
		t.Fatalf("parse fake firestore url: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse fake firestore port: %v", err)
	}

	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("id", "test")
	viper.Set("firestore.project_id", "demo")
	viper.Set("firestore.transport", "rest")
	viper.Set("firestore.timeout", "2s")
	viper.Set("firestore.emulator.enabled", true)
	viper.Set("firestore.emulator.host", u.Hostname())
	viper.Set("firestore.emulator.port", port)
	viper.Set("cms.base_url", wp.URL())
	viper.Set("cms.timeout", "2s")
	for k, v := range extra {
		viper.Set(k, v)
	}
}
