package storage

import "testing"

func TestDetectStorageType(t *testing.T) {
	cases := map[string]StorageType{
		"https://abc.r2.cloudflarestorage.com": StorageTypeR2,
		"s3.eu-west-1.amazonaws.com":           StorageTypeS3,
		"localhost:9000":                       StorageTypeS3Compatible,
	}
	for endpoint, want := range cases {
		if got := detectStorageType(endpoint); got != want {
			t.Errorf("detectStorageType(%q) = %s, want %s", endpoint, got, want)
		}
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	cases := map[string]string{
		"https://minio.example.com/":      "minio.example.com",
		"http://localhost:9000/some/path": "localhost:9000",
		"localhost:9000":                  "localhost:9000",
	}
	for in, want := range cases {
		if got := normalizeEndpoint(in); got != want {
			t.Errorf("normalizeEndpoint(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPublicObjectURL(t *testing.T) {
	if got := publicObjectURL("https://cdn.example.com/", "https", "s3.local", "results", "results/a.mp4"); got != "https://cdn.example.com/results/a.mp4" {
		t.Errorf("with public url: %q", got)
	}
	if got := publicObjectURL("", "http", "localhost:9000", "results", "results/a.mp4"); got != "http://localhost:9000/results/results/a.mp4" {
		t.Errorf("path style: %q", got)
	}
}

func TestObjectContentDisposition(t *testing.T) {
	if got := (Object{Filename: "vid-1.mp4"}).contentDisposition(); got != `attachment; filename="vid-1.mp4"` {
		t.Errorf("contentDisposition() = %q", got)
	}
	if got := (Object{}).contentDisposition(); got != "" {
		t.Errorf("contentDisposition() = %q, want empty", got)
	}
}
