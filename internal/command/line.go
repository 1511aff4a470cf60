package command

import (
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/relay-controller/internal/relay"
)

// RelayLinePrefix starts a relay command on the local control channel.
const RelayLinePrefix = "relay,"

// ParseRelayLine parses "relay,<1-8>,<0|1>[,<seconds>]". Malformed fields
// yield ok=false. The relay number is not range-checked here: "relay,9,1"
// produces an intent for the executor to reject.
func ParseRelayLine(line string) (relay.Intent, bool) {
	if !strings.HasPrefix(line, RelayLinePrefix) {
		return relay.Intent{}, false
	}

	fields := strings.Split(strings.TrimPrefix(line, RelayLinePrefix), ",")
	if len(fields) < 2 || len(fields) > 3 {
		return relay.Intent{}, false
	}

	num, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return relay.Intent{}, false
	}
	state, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return relay.Intent{}, false
	}

	in := relay.Intent{Channel: num - 1, On: state == 1}
	if len(fields) == 3 {
		secs, err := strconv.ParseUint(strings.TrimSpace(fields[2]), 10, 32)
		if err != nil {
			return relay.Intent{}, false
		}
		in.Hold = time.Duration(secs) * time.Second
	}
	return in, true
}
