package gmf

import (
	"fmt"

	"github.com/goccy/go-json"
)

// ModelInfo is the JSON payload of SectionModelInfo.
type ModelInfo struct {
	Arch       string  `json:"arch"`
	Name       string  `json:"name,omitempty"`
	VocabSize  int     `json:"vocab_size"`
	Dim        int     `json:"dim"`
	HiddenDim  int     `json:"hidden_dim"`
	Layers     int     `json:"layers"`
	Heads      int     `json:"heads"`
	MaxContext int     `json:"max_context"`
	NormEps    float32 `json:"norm_eps"`
	RopeTheta  float32 `json:"rope_theta"`
}

// Vocab is the JSON payload of SectionVocab. Token ids are slice indices;
// ids below zero mean "not defined".
type Vocab struct {
	Tokens []string `json:"tokens"`
	BOS    int      `json:"bos_token_id"`
	EOS    int      `json:"eos_token_id"`
	UNK    int      `json:"unk_token_id"`
	AddBOS bool     `json:"add_bos"`
}

func ParseModelInfo(b []byte) (ModelInfo, error) {
	var mi ModelInfo
	if len(b) == 0 {
		return mi, fmt.Errorf("%w: empty model info", ErrCorruptFile)
	}
	if err := json.Unmarshal(b, &mi); err != nil {
		return mi, fmt.Errorf("%w: model info: %v", ErrCorruptFile, err)
	}
	return mi, nil
}

func ParseVocab(b []byte) (Vocab, error) {
	v := Vocab{BOS: -1, EOS: -1, UNK: -1}
	if len(b) == 0 {
		return v, fmt.Errorf("%w: empty vocab", ErrCorruptFile)
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("%w: vocab: %v", ErrCorruptFile, err)
	}
	return v, nil
}

func EncodeModelInfo(mi ModelInfo) ([]byte, error) {
	return json.Marshal(mi)
}

func EncodeVocab(v Vocab) ([]byte, error) {
	return json.Marshal(v)
}
