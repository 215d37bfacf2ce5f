package security

import "testing"

func TestValidateEndpointURL_Rejections(t *testing.T) {
	cases := map[string]string{
		"bad scheme":       "ftp://example.com/hook",
		"no host":          "https:///hook",
		"localhost":        "http://localhost:8080/hook",
		"metadata service": "http://metadata.google.internal/computeMetadata",
		"loopback literal": "http://127.0.0.1/hook",
		"private literal":  "https://10.1.2.3/hook",
		"link-local":       "http://169.254.169.254/latest/meta-data",
		"unspecified":      "http://0.0.0.0/hook",
		"mapped loopback":  "http://[::ffff:127.0.0.1]/hook",
		"ipv6 loopback":    "http://[::1]/hook",
	}
	for name, raw := range cases {
		if err := ValidateEndpointURL(raw); err == nil {
			t.Errorf("%s: %q accepted, want rejection", name, raw)
		}
	}
}

func TestValidateEndpointURL_AcceptsPublicLiteral(t *testing.T) {
	for _, raw := range []string{
		"https://93.184.216.34/hook",
		"http://[2606:2800:220:1:248:1893:25c8:1946]/hook",
	} {
		if err := ValidateEndpointURL(raw); err != nil {
			t.Errorf("%q rejected: %v", raw, err)
		}
	}
}
