package builtin

import (
	"bufio"
	"os/exec"
	"strconv"
	"strings"

	"github.com/crushshell/crush/internal/command"
	"github.com/crushshell/crush/internal/crusherr"
	"github.com/crushshell/crush/internal/scope"
	"github.com/crushshell/crush/internal/value"
)

// registerHost installs global:host:procs, the one representative
// operating-system-facing builtin the seed library carries. Concrete builtins
// like a full process-listing plugin are out of scope here; this shells out to
// `ps` rather than parsing /proc directly so it behaves the same on every
// Unix.
func registerHost(l *scope.Loader) error {
	procsCmd := command.NewDescriptor("global:host:procs").
		Summary("lists running processes as a pid/name/status stream").
		CanBlock().
		Run(func(ctx *command.Context) (value.Value, error) {
			return produceStream(ctx, valueColumn(), func(send func(value.Row) error) error {
				rows, err := listProcesses()
				if err != nil {
					return err
				}
				for _, r := range rows {
					if err := send(value.Row{r}); err != nil {
						return err
					}
				}
				return nil
			})
		}).Build()

	return l.Declare("procs", value.Command{Callable: procsCmd})
}

func listProcesses() ([]value.Value, error) {
	out, err := exec.Command("ps", "-eo", "pid,stat,comm").Output()
	if err != nil {
		return nil, crusherr.Wrap(crusherr.IOError, err, "listing processes")
	}
	var rows []value.Value
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first {
			first = false
			continue // header line
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		pid, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			continue
		}
		statField := fields[1]
		name := fields[2]

		s := value.NewStruct(nil)
		s.Set("pid", value.NewInt(pid))
		s.Set("name", value.Str(name))
		s.Set("status", value.Str(procStatus(statField)))
		rows = append(rows, s)
	}
	return rows, nil
}

// procStatus maps a ps STAT field's leading state character to the human
// status name filter conditions match on ("Running").
func procStatus(stat string) string {
	if stat == "" {
		return "Unknown"
	}
	switch stat[0] {
	case 'R':
		return "Running"
	case 'S', 'I':
		return "Sleeping"
	case 'D':
		return "Waiting"
	case 'Z':
		return "Zombie"
	case 'T', 't':
		return "Stopped"
	default:
		return "Unknown"
	}
}
