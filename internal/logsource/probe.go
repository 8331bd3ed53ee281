package logsource

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"droidscope/internal/config"
)

// accessCheckTimeout bounds the one-shot dump run by the access check.
const accessCheckTimeout = 5 * time.Second

// Replaced in tests.
var (
	lookPath = exec.LookPath
	runCheck = func(ctx context.Context, argv []string) ([]byte, error) {
		return exec.CommandContext(ctx, argv[0], argv[1:]...).Output()
	}
)

// pidField matches the "( 1234):" part of brief and time formatted lines.
var pidField = regexp.MustCompile(`^(?:\S+ \S+ )?[VDIWEFS]/[^(]*\(\s*(\d+)\):`)

// Probe chooses the access path for "auto" mode. The direct command wins when
// its binary resolves and, if check is non-empty, running check shows log
// lines from some process other than this one. Without that grant a reader
// only sees its own logs, so the broker command is tried next. When neither
// path works the UnavailableError names both attempts.
func Probe(direct, broker, check []string) (LineSource, error) {
	bin, derr := resolve(direct)
	if derr == nil && len(check) > 0 {
		derr = checkAccess(check)
	}
	if derr == nil {
		return NewDirect(withBinary(direct, bin)), nil
	}
	bin, berr := resolve(broker)
	if berr == nil {
		return NewBroker(withBinary(broker, bin)), nil
	}
	return nil, unavailable("auto", fmt.Errorf("direct: %v; broker: %v", derr, berr))
}

// Select builds the LineSource for cfg.Source. stdin backs the "stdin" mode.
// cfg must already have defaults applied.
func Select(cfg config.Config, stdin io.Reader) (LineSource, error) {
	switch cfg.Source {
	case config.SourceDirect:
		return NewDirect(cfg.DirectCommand), nil
	case config.SourceBroker:
		return NewBroker(cfg.BrokerCommand), nil
	case config.SourceFile:
		return NewFile(cfg.SourceFile, false), nil
	case config.SourceStdin:
		return NewReader("stdin", stdin), nil
	case config.SourceAuto, "":
		return Probe(cfg.DirectCommand, cfg.BrokerCommand, cfg.AccessCheck)
	default:
		return nil, unavailable(cfg.Source, fmt.Errorf("unknown source mode"))
	}
}

// checkAccess runs argv once and requires a clean exit plus at least one line
// written by another process.
func checkAccess(argv []string) error {
	if strings.TrimSpace(argv[0]) == "" {
		return errors.New("access check: empty command")
	}
	ctx, cancel := context.WithTimeout(context.Background(), accessCheckTimeout)
	defer cancel()
	out, err := runCheck(ctx, argv)
	if err != nil {
		return fmt.Errorf("access check %s: %w", argv[0], err)
	}
	if !hasForeignLine(out, os.Getpid()) {
		return errors.New("access check: no lines from other processes, log access not granted")
	}
	return nil
}

func hasForeignLine(out []byte, self int) bool {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		m := pidField.FindSubmatch(sc.Bytes())
		if m == nil {
			continue
		}
		if pid, err := strconv.Atoi(string(m[1])); err == nil && pid != self {
			return true
		}
	}
	return false
}

func resolve(argv []string) (string, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return "", errors.New("no command configured")
	}
	return lookPath(argv[0])
}

func withBinary(argv []string, bin string) []string {
	out := append([]string(nil), argv...)
	out[0] = bin
	return out
}
