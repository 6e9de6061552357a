package blob

import "testing"

func TestObjectURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		key  string
		want string
	}{
		{
			name: "path style",
			cfg:  Config{Endpoint: "http://minio:9000", Bucket: "media"},
			key:  "avatars/u1/1.png",
			want: "http://minio:9000/media/avatars/u1/1.png",
		},
		{
			name: "tls",
			cfg:  Config{Endpoint: "s3.example.com", Bucket: "media", UseSSL: true},
			key:  "posts/u1/p1.jpg",
			want: "https://s3.example.com/media/posts/u1/p1.jpg",
		},
		{
			name: "public base",
			cfg:  Config{Endpoint: "minio:9000", Bucket: "media", PublicURL: "https://cdn.example.com/"},
			key:  "posts/u1/a b.jpg",
			want: "https://cdn.example.com/posts/u1/a%20b.jpg",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up, err := New(tt.cfg)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if got := up.ObjectURL(tt.key); got != tt.want {
				t.Fatalf("ObjectURL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(Config{Endpoint: "minio:9000"}); err == nil {
		t.Fatalf("expected error for missing bucket")
	}
}
