package auth

import (
	"testing"
	"time"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	a := New("test-secret", time.Hour)
	token, err := a.Issue("alice")
	if err != nil {
		t.Fatal(err)
	}
	uid, ok := a.Verify(token)
	if !ok {
		t.Fatal("freshly issued token rejected")
	}
	if uid != "alice" {
		t.Errorf("uid = %q, want alice", uid)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	a := New("test-secret", time.Hour)
	for _, token := range []string{"", "garbage", "a.b.c"} {
		if _, ok := a.Verify(token); ok {
			t.Errorf("token %q accepted", token)
		}
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	a := New("test-secret", -time.Minute)
	token, err := a.Issue("alice")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := a.Verify(token); ok {
		t.Error("expired token accepted")
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	a := New("test-secret", time.Hour)
	b := New("other-secret", time.Hour)
	token, err := a.Issue("alice")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := b.Verify(token); ok {
		t.Error("token signed with a different secret accepted")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPassword("hunter22", hash) {
		t.Error("correct password rejected")
	}
	if CheckPassword("hunter23", hash) {
		t.Error("wrong password accepted")
	}
}
