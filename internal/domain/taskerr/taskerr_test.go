package taskerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf_TypedErrors(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{Validation("bad input"), KindValidation},
		{Authorization("not allowed"), KindAuthorization},
		{NotFound("missing"), KindNotFound},
		{Conflict("duplicate"), KindConflict},
		{Transport(errors.New("refused"), "dial"), KindTransport},
	}
	for _, c := range cases {
		if got := KindOf(c.err); got != c.want {
			t.Errorf("KindOf(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestKindOf_UntypedDefaultsToTransport(t *testing.T) {
	if got := KindOf(errors.New("some io failure")); got != KindTransport {
		t.Errorf("expected untyped error to map to transport, got %v", got)
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	inner := NotFound("document missing")
	outer := fmt.Errorf("loading group: %w", inner)
	if !IsKind(outer, KindNotFound) {
		t.Error("expected wrapped not-found to keep its kind")
	}
	if IsKind(outer, KindConflict) {
		t.Error("wrapped not-found must not match conflict")
	}
}

func TestWrap_NilCauseIsNilError(t *testing.T) {
	if err := Wrap(KindTransport, nil, "noop"); err != nil {
		t.Errorf("Wrap with nil cause = %v, want nil", err)
	}
	if err := Transport(nil, "noop"); err != nil {
		t.Errorf("Transport with nil cause = %v, want nil", err)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Transport(cause, "push record")
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to see through the wrapper")
	}
}
