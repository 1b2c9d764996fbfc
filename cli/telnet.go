package cli

import (
	"time"
)

const (
	cmdWill = 251
	cmdWont = 252
	cmdDo   = 253
	cmdDont = 254
	cmdIAC  = 255
)

type telnetNegotiationOnly struct{}

var errTelnetNegOnly = telnetNegotiationOnly{}

func (e telnetNegotiationOnly) Error() string {
	return "telnetNegotiationOnlyError"
}

func shift(b []byte, size, offset int) int {
	copy(b, b[offset:size])
	return size - offset
}

// telnetNegotiation consumes option negotiation from the head of the
// read buffer, refusing every option (IAC WONT / IAC DONT). When the
// buffer carried negotiation only, errTelnetNegOnly tells the caller
// to keep reading.
func telnetNegotiation(b []byte, n int, t transp) (int, error) {

	timeout := 5 * time.Second
	hitNeg := false

	for {
		if n < 3 {
			break
		}
		if b[0] != cmdIAC {
			break
		}
		if b[1] == cmdDo {
			opt := b[2]
			t.SetDeadline(time.Now().Add(timeout))
			t.Write([]byte{cmdIAC, cmdWont, opt}) // IAC WONT opt
			n = shift(b, n, 3)
			hitNeg = true
			continue
		}
		if b[1] == cmdWill {
			opt := b[2]
			t.SetDeadline(time.Now().Add(timeout))
			t.Write([]byte{cmdIAC, cmdDont, opt}) // IAC DONT opt
			n = shift(b, n, 3)
			hitNeg = true
			continue
		}
		break
	}

	if n == 0 && hitNeg {
		return 0, errTelnetNegOnly
	}

	return n, nil
}
