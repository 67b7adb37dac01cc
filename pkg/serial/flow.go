package serial

import (
	"fmt"
	"strconv"
	"strings"
)

// FlowPreset is one of the canned flow control setups.
type FlowPreset int

const (
	FlowNone FlowPreset = iota
	FlowRTSCTS
	FlowDTRDSR
	FlowXonXoff
)

func (p FlowPreset) String() string {
	if l := FlowPresetTable.Describe(p); l != "" {
		return l
	}
	return "FlowPreset(" + strconv.Itoa(int(p)) + ")"
}

// ParseFlowPreset accepts a preset label in any case.
func ParseFlowPreset(s string) (FlowPreset, error) {
	p, ok := FlowPresetTable.Find(s)
	if !ok {
		return FlowNone, fmt.Errorf("invalid flow control: %q (valid: %s)", s, strings.Join(FlowPresetTable.Labels(), ", "))
	}
	return p, nil
}

// ApplyFlowPreset rewrites the control line and flow fields for the preset.
// Hardware presets put their line into handshake and watch its partner;
// the others keep both lines raised and toggle XON/XOFF. DSR sensitivity and
// transmit-after-XOFF are always cleared.
func (c *LineConfig) ApplyFlowPreset(p FlowPreset) {
	c.DTRControl = DTREnable
	c.RTSControl = RTSEnable

	switch p {
	case FlowRTSCTS, FlowDTRDSR:
		if p == FlowDTRDSR {
			c.DTRControl = DTRHandshake
		} else {
			c.RTSControl = RTSHandshake
		}
		c.CTSOutFlow = p == FlowRTSCTS
		c.DSROutFlow = p == FlowDTRDSR
		c.XonOutFlow = false
		c.XonInFlow = false
	default:
		c.CTSOutFlow = false
		c.DSROutFlow = false
		c.XonOutFlow = p == FlowXonXoff
		c.XonInFlow = p == FlowXonXoff
	}

	c.DSRSensitivity = false
	c.TxContinueOnXoff = false
}

// MatchFlowPreset reports which preset the configuration matches, if any.
func (c LineConfig) MatchFlowPreset() (FlowPreset, bool) {
	for _, e := range FlowPresetTable {
		probe := c
		probe.ApplyFlowPreset(e.Value)
		if probe == c {
			return e.Value, true
		}
	}
	return FlowNone, false
}
