package provider

import (
	"errors"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	cause := errors.New("bad key")
	cases := []struct {
		err  *Error
		want string
	}{
		{&Error{Provider: "openai", Op: "transcribe", StatusCode: 401, Err: cause}, "openai transcribe: status 401: bad key"},
		{&Error{Provider: "groq", Op: "transcribe", Err: cause}, "groq transcribe: bad key"},
	}
	for _, c := range cases {
		if got := c.err.Error(); got != c.want {
			t.Errorf("Error() = %q, want %q", got, c.want)
		}
		if !errors.Is(c.err, cause) {
			t.Errorf("%v does not unwrap to cause", c.err)
		}
	}
}
