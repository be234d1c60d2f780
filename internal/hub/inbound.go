package hub

import (
	"encoding/json"
	"errors"
	"time"

	"parkarena/broker/internal/input"
	"parkarena/broker/internal/logging"
	"parkarena/broker/internal/match"
)

// handle processes one inbound frame and reports whether the connection stays open.
func (h *Hub) handle(c *client, data []byte) bool {
	//1.- Clients serving a cooldown are refused before any decoding work.
	if ok, remaining := h.validator.Admit(c.id); !ok {
		h.sendTo(c, encodeError(ErrorMessage{Error: "cooldown active", Reason: string(input.ViolationCooldown), RetryMs: remaining.Milliseconds()}))
		return true
	}

	var frame Inbound
	if err := json.Unmarshal(data, &frame); err != nil {
		return h.violation(c, input.ViolationMalformed, err, 0, 0)
	}
	switch frame.Type {
	case TypeInput:
		return h.handleInput(c, frame)
	case TypeCommand:
		return h.handleCommand(c, frame)
	default:
		return h.violation(c, input.ViolationMalformed, errors.New("unknown message type"), 0, 0)
	}
}

func (h *Hub) handleInput(c *client, frame Inbound) bool {
	if !c.driver {
		h.sendTo(c, encodeError(ErrorMessage{Error: ErrDriverRequired.Error(), SequenceID: frame.SequenceID}))
		return true
	}
	controls, err := input.ParseControls(frame.Controls)
	if err != nil {
		return h.violation(c, input.ViolationUnknownControl, err, frame.SequenceID, 0)
	}
	var sentAt time.Time
	if frame.SentAtMs > 0 {
		sentAt = time.UnixMilli(frame.SentAtMs)
		h.clocks.Observe(c.id, sentAt)
	}
	//1.- Sequencing and freshness drops are reported but never escalate.
	decision := h.gate.Evaluate(input.Frame{ClientID: c.id, SequenceID: frame.SequenceID, SentAt: sentAt, Controls: controls})
	if !decision.Accepted {
		h.sendTo(c, encodeError(ErrorMessage{Error: "input dropped", Reason: decision.Reason.String(), SequenceID: frame.SequenceID}))
		return true
	}
	h.session.Controls().Store(c.id, controls)
	return true
}

func (h *Hub) handleCommand(c *client, frame Inbound) bool {
	if !c.driver {
		h.sendTo(c, encodeError(ErrorMessage{Error: ErrDriverRequired.Error()}))
		return true
	}
	command, err := match.ParseCommand(frame.Command)
	if err != nil {
		return h.violation(c, input.ViolationUnknownCommand, err, 0, 0)
	}
	if ok, wait := c.commands.Admit(); !ok {
		return h.violation(c, input.ViolationCommandFlood, errors.New("command rate exceeded"), 0, wait)
	}
	if err := h.session.Enqueue(command); err != nil {
		h.logger.Warn("command enqueue failed", logging.String("client_id", c.id), logging.String("command", string(command)), logging.Error(err))
		h.sendTo(c, encodeError(ErrorMessage{Error: err.Error()}))
	}
	return true
}

// violation records a bad frame, answers the sender and decides whether to disconnect.
// retry is the limiter's own back-off; the longer of it and any cooldown is reported.
func (h *Hub) violation(c *client, reason input.ViolationReason, err error, sequence uint64, retry time.Duration) bool {
	verdict := h.validator.Record(c.id, reason)
	message := ErrorMessage{Error: err.Error(), Reason: string(reason), SequenceID: sequence}
	if verdict.Cooldown > retry {
		retry = verdict.Cooldown
	}
	if retry > 0 {
		message.RetryMs = retry.Milliseconds()
	}
	if verdict.Disconnect {
		h.logger.Warn("disconnecting abusive client", logging.String("client_id", c.id), logging.String("reason", string(reason)))
		h.expel(c, encodeError(message), string(reason))
		return false
	}
	h.sendTo(c, encodeError(message))
	return true
}
