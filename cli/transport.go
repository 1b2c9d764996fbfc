package cli

import (
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

type transpTelnet struct {
	net.Conn
	logger hasPrintf
}

func (s *transpTelnet) Read(b []byte) (int, error) {
	n, err := s.Conn.Read(b)
	if err != nil {
		return n, err
	}
	return telnetNegotiation(b, n, s)
}

func (s *transpTelnet) EofIsError() bool {
	return true
}

// transpPipe adapts a raw net.Conn (no telnet negotiation) for tests
// and console servers speaking plain TCP.
type transpPipe struct {
	net.Conn
}

func (s *transpPipe) EofIsError() bool {
	return true
}

type deadlineTimeout struct{}

func (e deadlineTimeout) Error() string {
	return "read deadline expired"
}

func (e deadlineTimeout) Timeout() bool {
	return true
}

type transpSSH struct {
	devLabel string
	conn     net.Conn
	client   *ssh.Client
	session  *ssh.Session
	writer   io.Writer
	incoming chan []byte
	pending  []byte
	deadline time.Time
}

func (s *transpSSH) EofIsError() bool {
	return false
}

// Read delivers shell output pumped from the remote session. It honors
// the deadline set with SetDeadline, returning a timeout error the
// expect loop recognizes.
func (s *transpSSH) Read(b []byte) (int, error) {
	if len(s.pending) == 0 {
		wait := time.Until(s.deadline)
		if wait <= 0 {
			return 0, deadlineTimeout{}
		}
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case data, ok := <-s.incoming:
			if !ok {
				return 0, io.EOF
			}
			s.pending = data
		case <-timer.C:
			return 0, deadlineTimeout{}
		}
	}
	n := copy(b, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *transpSSH) Write(b []byte) (int, error) {
	n, err := s.writer.Write(b)
	if err != nil {
		return -1, fmt.Errorf("ssh write(%s): %v", b, err)
	}
	return n, nil
}

func (s *transpSSH) SetDeadline(t time.Time) error {
	s.deadline = t
	return s.conn.SetDeadline(t.Add(time.Minute)) // transport-level guard only
}

func (s *transpSSH) Close() error {
	err1 := s.session.Close()
	err2 := s.conn.Close()
	if err1 != nil || err2 != nil {
		return fmt.Errorf("close error: session=[%v] conn=[%v]", err1, err2)
	}
	return nil
}

// Dial opens the first transport that answers, in the order listed in
// transports ("ssh,telnet"). The boolean result reports whether the
// transport already authenticated the session (SSH does, telnet needs
// the login chat).
func Dial(logger hasPrintf, label, hostPort, transports, user, pass string, attr Attributes, debug bool) (*Channel, string, bool, error) {
	tList := strings.Split(transports, ",")
	if len(tList) < 1 {
		return nil, transports, false, fmt.Errorf("dial: missing transports: [%s]", transports)
	}

	timeout := 10 * time.Second

	for _, t := range tList {
		switch t {
		case "ssh":
			hp := forceHostPort(hostPort, "22")
			s, err := openSSH(label, hp, timeout, user, pass)
			if err == nil {
				return NewChannel(s, attr, logger, label, debug), t, true, nil
			}
			logger.Printf("dial: %v", err)
		default:
			hp := forceHostPort(hostPort, "23")
			s, err := openTelnet(logger, label, hp, timeout)
			if err == nil {
				return NewChannel(s, attr, logger, label, debug), t, false, nil
			}
			logger.Printf("dial: %v", err)
		}
	}

	return nil, transports, false, fmt.Errorf("dial: %s %s %s - unable to open transport", label, hostPort, transports)
}

func forceHostPort(hostPort, defaultPort string) string {
	if i := strings.Index(hostPort, ":"); i < 0 {
		return fmt.Sprintf("%s:%s", hostPort, defaultPort)
	}
	return hostPort
}

func openSSH(label, hostPort string, timeout time.Duration, user, pass string) (transp, error) {

	conn, dialErr := net.DialTimeout("tcp", hostPort, timeout)
	if dialErr != nil {
		return nil, fmt.Errorf("openSSH: dial: %s %s - %v", label, hostPort, dialErr)
	}

	config := &ssh.ClientConfig{
		User: user,
		Auth: []ssh.AuthMethod{
			ssh.Password(pass),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	c, chans, reqs, connErr := ssh.NewClientConn(conn, hostPort, config)
	if connErr != nil {
		conn.Close()
		return nil, fmt.Errorf("openSSH: client conn: %s %s - %v", label, hostPort, connErr)
	}

	s := &transpSSH{
		conn:     conn,
		client:   ssh.NewClient(c, chans, reqs),
		devLabel: fmt.Sprintf("%s %s", label, hostPort),
		incoming: make(chan []byte, 16),
	}

	ses, sessionErr := s.client.NewSession()
	if sessionErr != nil {
		conn.Close()
		return nil, fmt.Errorf("openSSH: session: %s - %v", s.devLabel, sessionErr)
	}

	s.session = ses

	modes := ssh.TerminalModes{}

	if ptyErr := ses.RequestPty("xterm", 80, 40, modes); ptyErr != nil {
		s.Close()
		return nil, fmt.Errorf("openSSH: pty: %s - %v", s.devLabel, ptyErr)
	}

	out, outErr := ses.StdoutPipe()
	if outErr != nil {
		s.Close()
		return nil, fmt.Errorf("openSSH: stdout pipe: %s - %v", s.devLabel, outErr)
	}

	writer, wrErr := ses.StdinPipe()
	if wrErr != nil {
		s.Close()
		return nil, fmt.Errorf("openSSH: stdin pipe: %s - %v", s.devLabel, wrErr)
	}

	s.writer = writer

	if shellErr := ses.Shell(); shellErr != nil {
		s.Close()
		return nil, fmt.Errorf("openSSH: remote shell: %s - %v", s.devLabel, shellErr)
	}

	// pump remote output into the incoming queue
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := out.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				s.incoming <- data
			}
			if err != nil {
				close(s.incoming)
				return
			}
		}
	}()

	return s, nil
}

func openTelnet(logger hasPrintf, label, hostPort string, timeout time.Duration) (transp, error) {

	conn, err := net.DialTimeout("tcp", hostPort, timeout)
	if err != nil {
		return nil, fmt.Errorf("openTelnet: %s %s - %v", label, hostPort, err)
	}

	return &transpTelnet{Conn: conn, logger: logger}, nil
}
