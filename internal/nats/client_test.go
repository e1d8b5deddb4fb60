package nats

import "testing"

func TestNew_Unit_URLs(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"unreachable host", "nats://127.0.0.1:1"},
		{"malformed url", "://not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.url)
			if err == nil {
				client.Close()
				t.Fatalf("New(%q) should fail", tt.url)
			}
			if client != nil {
				t.Error("New() should return nil client on error")
			}
		})
	}
}

func TestClient_Close_Unit_NilSafety(t *testing.T) {
	client := &Client{}
	client.Close()
}

func TestClient_Unit_NilArguments(t *testing.T) {
	client := &Client{}

	if err := client.PublishArchive(nil); err == nil {
		t.Error("PublishArchive(nil) should fail")
	}
	if err := client.PublishDecoded(nil); err == nil {
		t.Error("PublishDecoded(nil) should fail")
	}
	if err := client.SubscribeArchives(nil); err == nil {
		t.Error("SubscribeArchives(nil) should fail")
	}
	if err := client.SubscribeDecoded(nil); err == nil {
		t.Error("SubscribeDecoded(nil) should fail")
	}
}

func TestStreams_Unit(t *testing.T) {
	subjects := make(map[string]string)
	for _, cfg := range streams {
		for _, s := range cfg.Subjects {
			subjects[s] = cfg.Name
		}
	}
	for _, want := range []string{SubjectArchive, SubjectDecoded} {
		if subjects[want] == "" {
			t.Errorf("no stream captures subject %s", want)
		}
	}
}
