package chat

import "testing"

func TestActionRoundTrip(t *testing.T) {
	t.Parallel()

	a := NewAction("dlg_user", 42, 7)
	if got := a.String(); got != "dlg_user:42:7" {
		t.Fatalf("Expected dlg_user:42:7, got %q", got)
	}
	parsed, err := ParseAction(a.String())
	if err != nil {
		t.Fatalf("ParseAction() error = %v", err)
	}
	if parsed.Name != "dlg_user" || parsed.Arg(0) != 42 || parsed.Arg(1) != 7 || parsed.Arg(2) != 0 {
		t.Errorf("Unexpected action %+v", parsed)
	}

	bare, err := ParseAction("shift_open")
	if err != nil || bare.Name != "shift_open" || len(bare.Args) != 0 {
		t.Errorf("Unexpected bare action %+v, %v", bare, err)
	}
}

func TestParseActionRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, data := range []string{"", ":1", "ack:x"} {
		if _, err := ParseAction(data); err == nil {
			t.Errorf("Expected error for %q", data)
		}
	}
}

func TestUpdateCommand(t *testing.T) {
	t.Parallel()

	name, args, ok := Update{Text: "/login@tmbot  jroe   s3cret"}.Command()
	if !ok || name != "login" || len(args) != 2 || args[0] != "jroe" || args[1] != "s3cret" {
		t.Errorf("Unexpected parse %q %v %v", name, args, ok)
	}
	if _, _, ok := (Update{Text: "hello"}).Command(); ok {
		t.Error("Expected plain text not to be a command")
	}
	if _, _, ok := (Update{Text: "/"}).Command(); ok {
		t.Error("Expected lone slash not to be a command")
	}
}
