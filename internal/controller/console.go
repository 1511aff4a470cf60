package controller

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sweeney/relay-controller/internal/command"
	"github.com/sweeney/relay-controller/internal/relay"
	"github.com/sweeney/relay-controller/internal/status"
)

// Console self-test payloads: relay 1 on for two seconds, left to the timer
// to switch off.
var (
	testJSONPayload = []byte(`{"relay":1,"state":1,"duration":2}`)
	testHexPayload  = []byte{command.CmdRelayControl, 0x80, 0x02}
)

const helpText = `Available commands:
  relay,<number>,<state>[,<duration>] - Control relay
  status - Show current status
  send - Send status now
  join - Force join attempt
  test_json - Run test JSON command
  test_hex - Run test HEX command
  reset - Restart the controller
`

// HandleLine executes one console line. It returns ErrReset for "reset" and
// nil otherwise; command failures are reported on the console.
func (c *Controller) HandleLine(line string, now time.Time) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	if strings.HasPrefix(line, command.RelayLinePrefix) {
		c.relayLine(line, now)
		return nil
	}

	switch line {
	case "status":
		c.printStatus(now)
	case "send":
		if err := c.SendStatus(now); err != nil {
			fmt.Fprintf(c.out, "Cannot send status: %v\n", err)
		} else {
			fmt.Fprintln(c.out, "Status queued")
		}
	case "join":
		if !c.ls.TransportReady {
			fmt.Fprintln(c.out, "Cannot join: transport not initialized")
			break
		}
		fmt.Fprintln(c.out, "Attempting to join...")
		if c.state == StateIdle {
			c.state = StateJoining
		}
		c.requestJoin(now)
	case "test_json":
		c.selfTest("JSON", string(testJSONPayload), testJSONPayload, now)
	case "test_hex":
		c.selfTest("HEX", fmt.Sprintf("% X", testHexPayload), testHexPayload, now)
	case "reset":
		fmt.Fprintln(c.out, "Resetting...")
		return ErrReset
	default:
		fmt.Fprint(c.out, helpText)
	}
	return nil
}

func (c *Controller) relayLine(line string, now time.Time) {
	in, ok := command.ParseRelayLine(line)
	if !ok {
		log.Printf("controller: ignoring malformed line %q", line)
		return
	}

	audit, err := c.bank.Apply(in, now)
	if err != nil {
		fmt.Fprintf(c.out, "Rejected: %v\n", err)
		c.setAudit("LINE: "+err.Error(), now)
		return
	}
	fmt.Fprintf(c.out, "OK: %s\n", audit)
	c.setAudit("LINE: "+audit, now)
}

func (c *Controller) selfTest(name, shown string, payload []byte, now time.Time) {
	fmt.Fprintf(c.out, "Running %s command test...\n", name)
	fmt.Fprintf(c.out, "Test command: %s\n", shown)
	fmt.Fprintln(c.out, c.runPayload(payload, now))
}

func (c *Controller) printStatus(now time.Time) {
	fmt.Fprintln(c.out, "Current Status:")
	fmt.Fprintf(c.out, "Link: %s\n", c.state)
	fmt.Fprintf(c.out, "Transport ready: %s\n", yesNo(c.ls.TransportReady))
	fmt.Fprintf(c.out, "Joined: %s\n", yesNo(c.ls.Joined))
	if c.audit != "" {
		fmt.Fprintf(c.out, "Last command: %s\n", c.audit)
	}
	fmt.Fprintln(c.out, "Relay States:")
	for _, ch := range c.bank.Status(now) {
		state := relay.StateOff
		if ch.On {
			state = relay.StateOn
		}
		fmt.Fprintf(c.out, "Relay %d: %s", ch.Channel+1, state)
		if ch.Remaining > 0 {
			fmt.Fprintf(c.out, " (turns off in %d seconds)", status.CeilSeconds(ch.Remaining))
		}
		fmt.Fprintln(c.out)
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
