package egress

import (
	"encoding/json"

	"github.com/twinsync/gateway/pkg/model"
)

// envelope is the §4.5/§6 outbound data envelope wrapping a frame payload.
type envelope struct {
	PubSeq     int64       `json:"pubSeq"`
	Ts         int64       `json:"ts"`
	FrameSeq   int64       `json:"frameSeq"`
	DeviceType string      `json:"deviceType"`
	DeviceID   string      `json:"deviceId"`
	Payload    interface{} `json:"payload"`
}

// EncodeEnvelope marshals frame into the §6 outbound wire envelope for key,
// stamped with the pump's own monotonic publish sequence number.
func EncodeEnvelope(pubSeq int64, key model.DeviceKey, frame model.Frame) ([]byte, error) {
	payload, err := frame.Payload()
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		PubSeq:     pubSeq,
		Ts:         frame.Ts(),
		FrameSeq:   frame.Seq(),
		DeviceType: key.DeviceType,
		DeviceID:   key.DeviceID,
		Payload:    payload,
	})
}
