package templates

import "testing"

func TestRendererRender(t *testing.T) {
	r := Renderer{}
	out, err := r.Render("greet", "Hello {{.Name}}", map[string]string{"Name": "Dana"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "Hello Dana" {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := r.Render("bad", "Hello {{.Missing}}", map[string]string{"Name": "x"}); err == nil {
		t.Fatalf("expected error for missing key")
	}
	if _, err := r.Render("empty", "", nil); err == nil {
		t.Fatalf("expected error for empty template")
	}
}

func TestRendererWelcome(t *testing.T) {
	r := Renderer{}
	cases := []struct {
		name       string
		configured string
		data       WelcomeData
		want       string
	}{
		{"registered user", "Hi!", WelcomeData{Name: "Ana"}, "Hello Ana! How can I help you today?"},
		{"anonymous", "Hello! How can I help you today?", WelcomeData{}, "Hello! How can I help you today?"},
		{"agent placeholder", "I'm {{.AgentName}}.", WelcomeData{AgentName: "Sam"}, "I'm Sam."},
		{"broken template", "Hi {{.Nope", WelcomeData{}, "Hi {{.Nope"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := r.Welcome(tc.configured, tc.data); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
