package ime

import (
	"henkan/internal/config"
	"henkan/internal/conversion"
)

// CallbackUndo asks the client to send CommandTypeUndo back.
const CallbackUndo = "undo"

// Output is the reply to one key event or session command.
type Output struct {
	ID string `json:"id"`
	// Consumed is false when the client should handle the key itself.
	Consumed bool   `json:"consumed"`
	Status   string `json:"status"`
	Mode     string `json:"mode"`
	// Key echoes a key that was not consumed.
	Key      string `json:"key,omitempty"`
	Callback string `json:"callback,omitempty"`

	*conversion.Output
}

// pending keeps what a commit produced until the end of the handler, since
// a later suggestion would otherwise drop it.
type pending struct {
	result   *conversion.OutputResult
	deletion *conversion.Deletion
	config   *config.Config
}

func (p *pending) merge(out *conversion.Output) {
	if out.Result == nil {
		out.Result = p.result
	}
	if out.DeletionRange == nil {
		out.DeletionRange = p.deletion
	}
	if out.Config == nil {
		out.Config = p.config
	}
	*p = pending{}
}

// collect moves the conversion result out of the session before the
// handler goes on.
func (s *Session) collect() {
	out := s.conv.PopOutput(s.composer)
	if out.Result != nil {
		s.pending.result = out.Result
	}
	if out.DeletionRange != nil {
		s.pending.deletion = out.DeletionRange
	}
	if out.Config != nil {
		s.pending.config = out.Config
	}
}

// output renders the session and resets the per-event flags.
func (s *Session) output() *Output {
	conv := s.conv.PopOutput(s.composer)
	s.pending.merge(conv)
	if conv.Config != nil {
		s.SetConfig(conv.Config.Clone())
	}

	mode := s.composer.InputMode().String()
	if s.state == Direct {
		mode = "direct"
	}
	out := &Output{
		ID:       s.id,
		Consumed: s.consumed,
		Status:   s.state.String(),
		Mode:     mode,
		Callback: s.callback,
		Output:   conv,
	}
	if !s.consumed {
		out.Key = s.echo
	}
	s.consumed = false
	s.callback = ""
	s.echo = ""
	return out
}
