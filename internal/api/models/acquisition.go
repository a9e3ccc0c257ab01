package models

// AcquisitionStatus is the acquisition state as reported by the API.
type AcquisitionStatus struct {
	Enabled      bool   `json:"enabled" doc:"Acquisition is running or a peer owns the hardware"`
	HasDriver    bool   `json:"has_driver" doc:"A backend is active"`
	State        string `json:"state" example:"streaming" enum:"disabled,bound,streaming,slave_observing" doc:"Controller state"`
	Mode         string `json:"mode" example:"active" enum:"disabled,slave_observing,active" doc:"Acquisition mode"`
	CardIndex    int    `json:"card_index" example:"0" doc:"Configured source index"`
	SessionID    string `json:"session_id,omitempty" doc:"Id of the open card session"`
	Failed       bool   `json:"failed" doc:"Last start or reconfiguration failed"`
	VideoPresent bool   `json:"video_present" doc:"Bound card sees a video signal"`
	Peer         string `json:"peer,omitempty" example:"tvapp@livingroom" doc:"Peer that owns the hardware"`
}

type AcquisitionStatusResponse struct {
	Body AcquisitionStatus
}

// AcquisitionConfig is the hardware configuration.
type AcquisitionConfig struct {
	Driver      string `json:"driver" enum:"none,pci,ks" example:"pci" doc:"Acquisition backend"`
	SourceIndex int    `json:"source_index" minimum:"0" maximum:"3" example:"0" required:"false" doc:"Card to acquire from"`
	Priority    int    `json:"priority" minimum:"0" maximum:"2" example:"0" required:"false" doc:"0 normal, 1 above normal, 2 time critical"`
	ChipType    string `json:"chip_type,omitempty" example:"109e:036e" required:"false" doc:"Expected chip, filled in from the scan when empty"`
	CardModel   int    `json:"card_model" minimum:"0" example:"10" required:"false" doc:"Card model"`
	TunerType   int    `json:"tuner_type" minimum:"0" example:"2" required:"false" doc:"Tuner type"`
	PLLType     int    `json:"pll_type" minimum:"0" maximum:"2" example:"1" required:"false" doc:"PLL type: 0 none, 1 28 MHz, 2 35 MHz"`
	WDMStop     bool   `json:"wdm_stop" required:"false" doc:"Stop a competing kernel driver while acquiring"`
}

type AcquisitionConfigData struct {
	AcquisitionConfig
	InputSource int `json:"input_source" example:"1" doc:"Selected video input, -1 when none"`
	TunerFreq   int `json:"tuner_freq" example:"48250" doc:"Tuner frequency"`
	TunerNorm   int `json:"tuner_norm" example:"0" doc:"Tuner norm"`
}

type AcquisitionConfigResponse struct {
	Body AcquisitionConfigData
}

type AcquisitionConfigRequest struct {
	Body AcquisitionConfig
}

type InputRequest struct {
	Body struct {
		Input     int `json:"input" minimum:"0" example:"1" doc:"Video input index"`
		Norm      int `json:"norm" minimum:"0" example:"0" doc:"Video norm"`
		TunerFreq int `json:"tuner_freq,omitempty" example:"48250" doc:"Tuner frequency when the input is the tuner"`
	}
}

type InputResponse struct {
	Body struct {
		Input   int  `json:"input" example:"1" doc:"Selected video input"`
		IsTuner bool `json:"is_tuner" doc:"Whether the input is the tuner"`
	}
}
