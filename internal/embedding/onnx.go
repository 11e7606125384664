package embedding

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"unicode"

	ort "github.com/yalue/onnxruntime_go"

	"policychat/internal/config"
)

// onnxBackend runs a sentence-transformer style ONNX model in-process.
// The shared library, vocabulary, and session are loaded lazily on first
// use; inference runs one input at a time through fixed-shape tensors.
type onnxBackend struct {
	mu sync.Mutex

	modelPath string
	vocabPath string
	libPath   string
	seqLen    int

	session *ort.AdvancedSession
	inputs  []*ort.Tensor[int64]
	output  *ort.Tensor[float32]

	vocab                      map[string]int64
	clsID, sepID, unkID, padID int64
	outShape                   []int64
	inited                     bool
}

func newONNXBackend(cfg config.EmbeddingConfig) *onnxBackend {
	seqLen := cfg.MaxSeqLen
	if seqLen <= 0 {
		seqLen = 256
	}
	return &onnxBackend{
		modelPath: cfg.ModelPath,
		vocabPath: cfg.VocabPath,
		libPath:   cfg.ONNXSharedLibPath,
		seqLen:    seqLen,
	}
}

func (b *onnxBackend) Name() string { return "local:onnx" }

func (b *onnxBackend) initOnce() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inited {
		return nil
	}

	if b.libPath != "" {
		ort.SetSharedLibraryPath(b.libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("onnx init environment: %w", err)
	}

	if err := b.loadVocab(); err != nil {
		return fmt.Errorf("load vocab: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(b.modelPath)
	if err != nil {
		return fmt.Errorf("onnx get input/output info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return fmt.Errorf("onnx model has no inputs or outputs")
	}

	inputNames := make([]string, len(inputs))
	inputValues := make([]ort.Value, len(inputs))
	b.inputs = make([]*ort.Tensor[int64], len(inputs))
	for i, info := range inputs {
		inputNames[i] = info.Name
		tensor, err := ort.NewEmptyTensor[int64](ort.NewShape(1, int64(b.seqLen)))
		if err != nil {
			b.destroyTensors()
			return fmt.Errorf("onnx new input tensor: %w", err)
		}
		b.inputs[i] = tensor
		inputValues[i] = tensor
	}

	outShape, err := b.resolveOutputShape(outputs[0].Dimensions)
	if err != nil {
		b.destroyTensors()
		return err
	}
	b.outShape = outShape
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(outShape...))
	if err != nil {
		b.destroyTensors()
		return fmt.Errorf("onnx new output tensor: %w", err)
	}
	b.output = outputTensor

	session, err := ort.NewAdvancedSession(b.modelPath,
		inputNames, []string{outputs[0].Name},
		inputValues, []ort.Value{outputTensor}, nil)
	if err != nil {
		b.destroyTensors()
		return fmt.Errorf("onnx new session: %w", err)
	}
	b.session = session
	b.inited = true
	return nil
}

// resolveOutputShape pins the model's dynamic output dimensions: batch is
// always 1, a dynamic sequence dimension becomes the configured length.
// The hidden size must be static, otherwise the tensor cannot be sized.
func (b *onnxBackend) resolveOutputShape(dims []int64) ([]int64, error) {
	out := make([]int64, len(dims))
	copy(out, dims)
	if len(out) == 0 {
		return nil, fmt.Errorf("onnx model output has no dimensions")
	}
	out[0] = 1
	for i := 1; i < len(out); i++ {
		if out[i] > 0 {
			continue
		}
		if i == len(out)-1 {
			return nil, fmt.Errorf("onnx model hidden size is dynamic, cannot allocate output")
		}
		out[i] = int64(b.seqLen)
	}
	return out, nil
}

func (b *onnxBackend) destroyTensors() {
	for _, t := range b.inputs {
		if t != nil {
			t.Destroy()
		}
	}
	b.inputs = nil
	if b.output != nil {
		b.output.Destroy()
		b.output = nil
	}
}

func (b *onnxBackend) loadVocab() error {
	f, err := os.Open(b.vocabPath)
	if err != nil {
		return err
	}
	defer f.Close()

	b.vocab = make(map[string]int64)
	sc := bufio.NewScanner(f)
	var id int64
	for sc.Scan() {
		b.vocab[strings.TrimSpace(sc.Text())] = id
		id++
	}
	if err := sc.Err(); err != nil {
		return err
	}

	var ok bool
	if b.clsID, ok = b.vocab["[CLS]"]; !ok {
		return fmt.Errorf("vocab has no [CLS] token")
	}
	if b.sepID, ok = b.vocab["[SEP]"]; !ok {
		return fmt.Errorf("vocab has no [SEP] token")
	}
	if b.unkID, ok = b.vocab["[UNK]"]; !ok {
		return fmt.Errorf("vocab has no [UNK] token")
	}
	b.padID = b.vocab["[PAD]"]
	return nil
}

func (b *onnxBackend) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := b.initOnce(); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := b.embedOne(text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (b *onnxBackend) embedOne(text string) ([]float32, error) {
	ids, mask := b.encode(text)

	b.mu.Lock()
	for _, tensor := range b.inputs {
		data := tensor.GetData()
		for j := range data {
			data[j] = 0
		}
	}
	// convention: first input is token ids, second (when present) is the
	// attention mask, any further input (token type ids) stays zero
	copy(b.inputs[0].GetData(), ids)
	if len(b.inputs) > 1 {
		copy(b.inputs[1].GetData(), mask)
	}
	err := b.session.Run()
	if err != nil {
		b.mu.Unlock()
		return nil, fmt.Errorf("onnx run: %w", err)
	}
	raw := b.output.GetData()
	outData := make([]float32, len(raw))
	copy(outData, raw)
	b.mu.Unlock()

	var vec []float32
	if len(b.outShape) == 3 {
		vec = meanPool(outData, int(b.outShape[1]), int(b.outShape[2]), mask)
	} else {
		vec = outData
	}
	return l2Normalize(vec), nil
}

// encode tokenizes to wordpiece ids with [CLS]/[SEP] framing, padded and
// truncated to the fixed sequence length.
func (b *onnxBackend) encode(text string) (ids, mask []int64) {
	ids = make([]int64, b.seqLen)
	mask = make([]int64, b.seqLen)
	for i := range ids {
		ids[i] = b.padID
	}

	pieces := b.wordpiece(basicTokens(text))
	if len(pieces) > b.seqLen-2 {
		pieces = pieces[:b.seqLen-2]
	}

	ids[0] = b.clsID
	mask[0] = 1
	for i, id := range pieces {
		ids[i+1] = id
		mask[i+1] = 1
	}
	ids[len(pieces)+1] = b.sepID
	mask[len(pieces)+1] = 1
	return ids, mask
}

// basicTokens lowercases and splits text into alphanumeric runs, with each
// punctuation character as its own token.
func basicTokens(text string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			cur.WriteRune(r)
		case unicode.IsSpace(r):
			flush()
		default:
			flush()
			tokens = append(tokens, string(r))
		}
	}
	flush()
	return tokens
}

// wordpiece greedily matches the longest vocabulary entry, using the "##"
// continuation convention; a token with no match at all becomes [UNK].
func (b *onnxBackend) wordpiece(tokens []string) []int64 {
	var ids []int64
	for _, token := range tokens {
		start := 0
		var pieceIDs []int64
		for start < len(token) {
			end := len(token)
			matched := int64(-1)
			for end > start {
				sub := token[start:end]
				if start > 0 {
					sub = "##" + sub
				}
				if id, ok := b.vocab[sub]; ok {
					matched = id
					break
				}
				end--
			}
			if matched < 0 {
				pieceIDs = nil
				break
			}
			pieceIDs = append(pieceIDs, matched)
			start = end
		}
		if pieceIDs == nil {
			ids = append(ids, b.unkID)
			continue
		}
		ids = append(ids, pieceIDs...)
	}
	return ids
}

// meanPool averages token vectors over the attended positions.
func meanPool(data []float32, seqLen, hidden int, mask []int64) []float32 {
	vec := make([]float32, hidden)
	var count float32
	for pos := 0; pos < seqLen && pos < len(mask); pos++ {
		if mask[pos] == 0 {
			continue
		}
		count++
		base := pos * hidden
		for d := 0; d < hidden; d++ {
			vec[d] += data[base+d]
		}
	}
	if count > 0 {
		for d := range vec {
			vec[d] /= count
		}
	}
	return vec
}

func l2Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
