package access

import (
	"reflect"
	"testing"

	"appsession/internal/domain"
)

func TestParseKinds(t *testing.T) {
	cases := map[string]Kind{
		"*":       KindAny,
		"guest":   KindGuest,
		"user":    KindUser,
		"root":    KindRoot,
		"reports": KindLiteral,
		"Guest":   KindLiteral,
	}
	for name, want := range cases {
		if got := Parse(name).Kind; got != want {
			t.Fatalf("%q: expected %s, got %s", name, want, got)
		}
	}
}

func TestCheck(t *testing.T) {
	guest := Subject{Permissions: domain.Permissions{}}
	member := Subject{Authenticated: true, Permissions: domain.Permissions{"reports": true, "billing": false}}
	root := Subject{Authenticated: true, Root: true, Permissions: domain.Permissions{}}

	cases := []struct {
		name    string
		subject Subject
		names   []string
		want    bool
	}{
		{"wildcard guest", guest, []string{"*"}, true},
		{"wildcard member", member, []string{"*"}, true},
		{"guest token on guest", guest, []string{"guest"}, true},
		{"guest token on member", member, []string{"guest"}, false},
		{"user token on guest", guest, []string{"user"}, false},
		{"user token on member", member, []string{"user"}, true},
		{"root token on member", member, []string{"root"}, false},
		{"root token on root", root, []string{"root"}, true},
		{"literal granted", member, []string{"reports"}, true},
		{"literal false entry", member, []string{"billing"}, false},
		{"literal missing", member, []string{"missing-perm"}, false},
		{"root has no implicit literals", root, []string{"reports"}, false},
		{"first match wins", member, []string{"missing", "reports"}, true},
		{"empty list", member, nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Check(tc.subject, tc.names...); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestParseList(t *testing.T) {
	if got := ParseList(""); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
	if got := ParseList(" , ,"); got != nil {
		t.Fatalf("expected nil for blank entries, got %v", got)
	}
	got := ParseList(" admin, ,reports ,")
	if !reflect.DeepEqual(got, []string{"admin", "reports"}) {
		t.Fatalf("unexpected list %v", got)
	}
}

func TestRootIdentityMatches(t *testing.T) {
	root := RootIdentity{UserID: "1", Username: "root"}
	cases := []struct {
		userID, username string
		want             bool
	}{
		{"1", "someone", true},
		{"42", "root", true},
		{"root", "someone", false},
		{"7", "ana", false},
		{"", "root", false},
	}
	for _, tc := range cases {
		if got := root.Matches(tc.userID, tc.username); got != tc.want {
			t.Fatalf("(%q, %q): expected %v, got %v", tc.userID, tc.username, tc.want, got)
		}
	}
	if (RootIdentity{}).Matches("1", "root") {
		t.Fatalf("empty identity must never match")
	}
}
