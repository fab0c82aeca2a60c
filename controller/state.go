package controller

type State int

const (
	Idle State = iota
	Recording
	Transcribing
	Restarting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Transcribing:
		return "transcribing"
	case Restarting:
		return "restarting"
	}
	return "unknown"
}

// Next is the state after a successful transcription. Continuous mode keeps
// recording until a capture ends on silence.
func Next(continuous, stoppedBySilence bool) State {
	if continuous && !stoppedBySilence {
		return Restarting
	}
	return Idle
}
