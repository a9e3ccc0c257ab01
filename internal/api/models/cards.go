package models

// CardData is one entry of the card enumeration.
type CardData struct {
	SourceIndex int    `json:"source_index" example:"0" doc:"Source index used to select the card"`
	ChipType    string `json:"chip_type" example:"109e:036e" doc:"PCI vendor:device of the chip, empty when not scanned"`
	Name        string `json:"name" example:"Hauppauge (bt878)" doc:"Card model name or unknown-card description"`
}

type CardListResponse struct {
	Body struct {
		Cards      []CardData `json:"cards" doc:"Cards on the PCI bus, or from the hardware file when the scan failed"`
		Count      int        `json:"count" example:"1" doc:"Number of cards"`
		ScanStatus string     `json:"scan_status" example:"ok" doc:"Bus scan status: not_scanned, failed, ok"`
		Error      string     `json:"error,omitempty" doc:"Driver error when the scan failed"`
	}
}

type CardListRequest struct {
	Rescan bool `query:"rescan" doc:"Drop the cached card list and scan the bus again"`
}

type CardModelRequest struct {
	Index int `path:"index" minimum:"0" example:"0" doc:"Source index"`
	Model int `path:"model" minimum:"0" example:"10" doc:"Card model"`
}

type CardModelResponse struct {
	Body struct {
		SourceIndex int    `json:"source_index" example:"0" doc:"Source index"`
		CardModel   int    `json:"card_model" example:"10" doc:"Card model"`
		Name        string `json:"name" example:"Hauppauge (bt878)" doc:"Card model name"`
	}
}

type CardInputsRequest struct {
	Index int `path:"index" minimum:"0" example:"0" doc:"Source index"`
	Model int `query:"model" minimum:"0" example:"10" doc:"Card model"`
}

type CardInputsResponse struct {
	Body struct {
		Inputs []string `json:"inputs" doc:"Video input names by input index"`
	}
}

type CardDetectRequest struct {
	Index int `path:"index" minimum:"0" example:"0" doc:"Source index"`
	Body  struct {
		CardModel int `json:"card_model,omitempty" example:"0" doc:"Known card model, 0 to autodetect"`
		TunerType int `json:"tuner_type,omitempty" example:"2" doc:"Tuner type to keep"`
		PLLType   int `json:"pll_type,omitempty" example:"1" doc:"PLL type to keep"`
	}
}

type CardParamsResponse struct {
	Body struct {
		CardModel int    `json:"card_model" example:"10" doc:"Detected card model, 0 when unknown"`
		TunerType int    `json:"tuner_type" example:"2" doc:"Tuner type"`
		PLLType   int    `json:"pll_type" example:"1" doc:"PLL type"`
		Name      string `json:"name,omitempty" example:"Hauppauge (bt878)" doc:"Name of the detected model"`
	}
}

type CardCheckResponse struct {
	Body struct {
		Valid bool `json:"valid" doc:"Whether the configured card, model and input match the hardware"`
	}
}
