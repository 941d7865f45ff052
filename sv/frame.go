// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sv

import (
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// etherTypeQinQ is the 802.1ad service tag, not named by every gopacket release
const etherTypeQinQ layers.EthernetType = 0x88A8

// maxVLANTags bounds the number of stacked 802.1Q/802.1ad tags we unwrap
const maxVLANTags = 2

// Frame is an Ethernet frame carrying a Sampled Values payload
type Frame struct {
	Source      net.HardwareAddr
	Destination net.HardwareAddr

	Tagged   bool
	VLANID   uint16
	Priority uint8

	// Payload starts at the APPID
	Payload []byte
}

// ParseFrame locates the Sampled Values payload inside an Ethernet frame,
// unwrapping VLAN tags on the way. Frames with any other EtherType return
// ErrNotSampledValues.
func ParseFrame(data []byte) (*Frame, error) {
	var eth layers.Ethernet
	if err := eth.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}

	frame := &Frame{
		Source:      eth.SrcMAC,
		Destination: eth.DstMAC,
	}

	etherType := eth.EthernetType
	payload := eth.Payload
	for tags := 0; etherType == layers.EthernetTypeDot1Q || etherType == etherTypeQinQ; tags++ {
		if tags == maxVLANTags {
			return nil, fmt.Errorf("%w: more than %d VLAN tags", ErrInvalidFrame, maxVLANTags)
		}
		var tag layers.Dot1Q
		if err := tag.DecodeFromBytes(payload, gopacket.NilDecodeFeedback); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
		}
		// the innermost tag is the one the publisher set
		frame.Tagged = true
		frame.VLANID = tag.VLANIdentifier
		frame.Priority = tag.Priority
		etherType = tag.Type
		payload = tag.Payload
	}

	if etherType != EtherTypeSV {
		return nil, fmt.Errorf("%w: ethertype 0x%04X", ErrNotSampledValues, uint16(etherType))
	}
	frame.Payload = payload
	return frame, nil
}

// DecodeFrame extracts and decodes the payload of an Ethernet frame
func DecodeFrame(data []byte) (*Frame, *Payload, error) {
	frame, err := ParseFrame(data)
	if err != nil {
		return nil, nil, err
	}
	p, err := DecodePayload(frame.Payload)
	if err != nil {
		return frame, nil, err
	}
	return frame, p, nil
}
