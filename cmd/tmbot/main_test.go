package main

import "testing"

func TestWebhookPathOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{raw: "https://bot.example.com/tg/updates", want: "/tg/updates"},
		{raw: "https://bot.example.com", want: defaultWebhookPath},
		{raw: "https://bot.example.com/", want: defaultWebhookPath},
		{raw: "://bad", want: defaultWebhookPath},
	}
	for _, tt := range tests {
		if got := webhookPathOf(tt.raw); got != tt.want {
			t.Errorf("webhookPathOf(%q): expected %s, got %s", tt.raw, tt.want, got)
		}
	}
}

func TestRootCommands(t *testing.T) {
	t.Parallel()
	root := newRootCmd()
	for _, name := range []string{"bot", "worker"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("Expected %s subcommand, got %v (err %v)", name, cmd, err)
		}
	}
	if f := root.PersistentFlags().Lookup("env-file"); f == nil || f.DefValue != ".env" {
		t.Errorf("Expected env-file flag defaulting to .env, got %v", f)
	}
}
