package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":          "/",
		"/metrics":  "/metrics",
		"/healthz":  "/healthz",
		"/opal/read_current_db_attributes":         "/opal/read_current_db_attributes",
		"/opal/check_user_permission?email=a@b.c":  "/opal/check_user_permission",
		"/opal/read_organization":                  "/opal/read_organization",
		"/opal/push_custom_policy_for_smaug_data":  "/opal/push_custom_policy_for_smaug_data",
		"/opal/read_opal_scope_from_permitcloud":   "/opal/read_opal_scope_from_permitcloud",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
