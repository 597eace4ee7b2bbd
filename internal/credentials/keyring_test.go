package credentials

import (
	"errors"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestSystemKeyringRoundTrip(t *testing.T) {
	keyring.MockInit()
	var kr Keyring = &systemKeyring{}

	if err := kr.Set("done-mstodo", DefaultAccount, `{"access_token":"a"}`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := kr.Get("done-mstodo", DefaultAccount)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != `{"access_token":"a"}` {
		t.Errorf("Get = %q", got)
	}
	if err := kr.Delete("done-mstodo", DefaultAccount); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := kr.Get("done-mstodo", DefaultAccount); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete error = %v, want ErrNotFound", err)
	}
}

func TestSystemKeyringMissingEntry(t *testing.T) {
	keyring.MockInit()
	kr := &systemKeyring{}

	if _, err := kr.Get("done-google", "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get error = %v, want ErrNotFound", err)
	}
	if err := kr.Delete("done-google", "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete error = %v, want ErrNotFound", err)
	}
}

func TestSystemKeyringUnavailable(t *testing.T) {
	keyring.MockInitWithError(errors.New("dbus: no session bus"))
	t.Cleanup(keyring.MockInit)
	kr := &systemKeyring{}

	if err := kr.Set("done-mstodo", DefaultAccount, "x"); !errors.Is(err, ErrKeyringNotAvailable) {
		t.Errorf("Set error = %v, want ErrKeyringNotAvailable", err)
	}
	if _, err := kr.Get("done-mstodo", DefaultAccount); !errors.Is(err, ErrKeyringNotAvailable) {
		t.Errorf("Get error = %v, want ErrKeyringNotAvailable", err)
	}
}

func TestWrapKeyringErrorKeepsSizeLimit(t *testing.T) {
	if err := wrapKeyringError(keyring.ErrSetDataTooBig, "s", "a"); !errors.Is(err, keyring.ErrSetDataTooBig) {
		t.Errorf("wrapKeyringError = %v, want ErrSetDataTooBig", err)
	}
	if err := wrapKeyringError(nil, "s", "a"); err != nil {
		t.Errorf("wrapKeyringError(nil) = %v", err)
	}
}

func TestMockKeyringIsolatesServices(t *testing.T) {
	kr := NewMockKeyring()
	_ = kr.Set("done-mstodo", DefaultAccount, "ms")
	_ = kr.Set("done-google", DefaultAccount, "g")

	if err := kr.Delete("done-mstodo", DefaultAccount); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, err := kr.Get("done-google", DefaultAccount); err != nil || got != "g" {
		t.Errorf("Get(google) = %q, %v", got, err)
	}
	if _, err := kr.Get("done-mstodo", DefaultAccount); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(mstodo) error = %v, want ErrNotFound", err)
	}
}
