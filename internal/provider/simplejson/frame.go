package simplejson

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var errBadFrame = errors.New("bad frame")

func ReadMessage(r io.Reader, msg *FrameMessage) error {
	return readMessage(r, msg)
}

func readMessage(r io.Reader, msg *FrameMessage) error {
	var length int //length field

	if len(msg.Buffer) < 5 {
		return fmt.Errorf("buffer too small")
	}

	_, err := io.ReadFull(r, msg.Buffer[:4])
	if err != nil {
		return err
	}
	if msg.Buffer[0] != START_BYTE {
		return errBadFrame
	}
	length = int(binary.LittleEndian.Uint16(msg.Buffer[2:4]))
	msg.Protocol = msg.Buffer[1]
	msg.Length = length + 5

	if len(msg.Buffer) < msg.Length {
		return fmt.Errorf("buffer too small for frame of %d bytes", msg.Length)
	}

	_, err = io.ReadFull(r, msg.Buffer[4:msg.Length])
	if err != nil {
		return err
	}
	if msg.Buffer[msg.Length-1] != '\n' {
		return errBadFrame
	}

	//frame is header(4) + payload(length) + '\n'
	msg.Payload = msg.Buffer[4 : msg.Length-1]
	return nil
}

// AppendFrame encodes payload as a frame of the given protocol.
func AppendFrame(buf []byte, protocol byte, payload []byte) []byte {
	buf = append(buf, START_BYTE, protocol, 0, 0)
	binary.LittleEndian.PutUint16(buf[len(buf)-2:], uint16(len(payload)))
	buf = append(buf, payload...)
	return append(buf, '\n')
}
