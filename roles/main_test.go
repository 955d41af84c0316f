package roles

import "testing"

func TestOrderMatchesCatalogue(t *testing.T) {
	if len(Order) != 5 {
		t.Fatalf("expected 5 roles in progression, got %d", len(Order))
	}
	for _, key := range Order {
		role, ok := ByKey(key)
		if !ok {
			t.Fatalf("role %q from Order missing in catalogue", key)
		}
		if role.Key != key {
			t.Errorf("role %q has mismatched key %q", key, role.Key)
		}
		if role.Name == "" || role.Personality == "" || role.Objections == "" || role.AgreementBar == "" {
			t.Errorf("role %q has empty prompt fields", key)
		}
	}
}

func TestAllReturnsProgressionOrder(t *testing.T) {
	all := All()
	if len(all) != len(Order) {
		t.Fatalf("All() returned %d roles, want %d", len(all), len(Order))
	}
	for i, role := range all {
		if role.Key != Order[i] {
			t.Errorf("All()[%d] = %q, want %q", i, role.Key, Order[i])
		}
	}
}

func TestAtLevel(t *testing.T) {
	role, ok := AtLevel(0)
	if !ok || role.Key != "dmitry" {
		t.Errorf("AtLevel(0) = %q, %v; want dmitry, true", role.Key, ok)
	}

	role, ok = AtLevel(len(Order) - 1)
	if !ok || role.Key != "victoria" {
		t.Errorf("AtLevel(last) = %q, %v; want victoria, true", role.Key, ok)
	}

	if _, ok := AtLevel(len(Order)); ok {
		t.Error("AtLevel past the last level should report false")
	}
	if _, ok := AtLevel(-1); ok {
		t.Error("AtLevel(-1) should report false")
	}
}

func TestByKeyUnknown(t *testing.T) {
	if _, ok := ByKey("svetlana"); ok {
		t.Error("legacy key svetlana should not be in the catalogue")
	}
}

func TestIsWin(t *testing.T) {
	cases := []struct {
		reply string
		want  bool
	}{
		{"Окей, договорились. Записывайте на вторник.", true},
		{"ОКЕЙ, ДОГОВОРИЛИСЬ!", true},
		{"Ну ладно... окей, договорились, уговорили.", true},
		{"Хорошо, я подумаю.", false},
		{"Договорились же, что вы мне не будете звонить.", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsWin(tc.reply); got != tc.want {
			t.Errorf("IsWin(%q) = %v, want %v", tc.reply, got, tc.want)
		}
	}
}
