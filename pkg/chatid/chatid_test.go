package chatid

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"formatted phone", "+20 100 123 4567", "201001234567"},
		{"letters only", "abc", ""},
		{"empty", "   ", ""},
		{"too long", "1234567890123456", ""},
		{"full user id passthrough", "201001234567@s.whatsapp.net", "201001234567@s.whatsapp.net"},
		{"group id passthrough", "1203630000000001@g.us", "1203630000000001@g.us"},
		{"dashes and parens", "(010) 0123-4567", "01001234567"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in, 15); got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestIsValidChatID(t *testing.T) {
	valid := []string{
		"201001234567@s.whatsapp.net",
		"1203630000000001@g.us",
	}
	invalid := []string{
		"201001234567",
		"123@s.whatsapp.net",
		"1234567890123456@s.whatsapp.net",
		"abc@s.whatsapp.net",
		"@g.us",
	}

	for _, id := range valid {
		if !IsValidChatID(id) {
			t.Errorf("IsValidChatID(%q) = false, want true", id)
		}
	}
	for _, id := range invalid {
		if IsValidChatID(id) {
			t.Errorf("IsValidChatID(%q) = true, want false", id)
		}
	}
}

func TestDialable(t *testing.T) {
	if got := Dialable("01001234567", "20"); got != "201001234567" {
		t.Errorf("Dialable leading zero = %q", got)
	}
	if got := Dialable("201001234567", "20"); got != "201001234567" {
		t.Errorf("Dialable passthrough = %q", got)
	}
}

func TestHasInternalPrefix(t *testing.T) {
	if !HasInternalPrefix("1203634567", []string{"120363"}) {
		t.Error("expected internal prefix match")
	}
	if HasInternalPrefix("201001234567", []string{"120363"}) {
		t.Error("unexpected internal prefix match")
	}
}
