package redis

import "testing"

func TestNewClient(t *testing.T) {
	tests := []struct {
		name     string
		addr     string
		wantAddr string
		wantDB   int
		wantErr  bool
	}{
		{name: "host and port", addr: "localhost:6379", wantAddr: "localhost:6379"},
		{name: "url with db", addr: "redis://cache:6380/2", wantAddr: "cache:6380", wantDB: 2},
		{name: "bad url", addr: "redis://cache:6380/notadb", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.addr)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer c.Close()
			if got := c.Options().Addr; got != tt.wantAddr {
				t.Errorf("addr = %q, want %q", got, tt.wantAddr)
			}
			if got := c.Options().DB; got != tt.wantDB {
				t.Errorf("db = %d, want %d", got, tt.wantDB)
			}
		})
	}
}
