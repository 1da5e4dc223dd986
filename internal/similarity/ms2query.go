//go:build cgo
// +build cgo

package similarity

import (
	"fmt"
	"math"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/mzmatch/mzmatch/internal/models"
	"github.com/mzmatch/mzmatch/pkg/utils"
)

// inputBins is the fixed binning of the spectrum embedding model input:
// 1 Da bins over m/z 0..1000, intensity square-root weighted.
const inputBins = 1000

// MS2QueryScorer ranks library candidates with a pretrained spectrum
// embedding model. It requires CGO and the onnxruntime shared library.
type MS2QueryScorer struct {
	session      *ort.AdvancedSession
	dimensions   int
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	mu           sync.Mutex
	libCache     map[string][]float32
}

// NewMS2QueryScorer loads the embedding model at modelPath. Returns an error
// when the model file or the ONNX runtime is unavailable; callers are
// expected to fall back per Resolve.
func NewMS2QueryScorer(modelPath string, dimensions int) (*MS2QueryScorer, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("no model path configured")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %w", err)
	}
	if dimensions <= 0 {
		dimensions = 512
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(1, inputBins), make([]float32, inputBins))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	outputTensor, err := ort.NewTensor(ort.NewShape(1, int64(dimensions)), make([]float32, dimensions))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"spectrum"},
		[]string{"embedding"},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &MS2QueryScorer{
		session:      session,
		dimensions:   dimensions,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		libCache:     make(map[string][]float32),
	}, nil
}

func (s *MS2QueryScorer) Name() string { return AlgorithmMS2Query }

// ScorePair embeds both spectra and scores their embedding similarity,
// mapped to [0,1]. The matched peak count uses the same greedy assignment as
// the direct peak-overlap scorers.
func (s *MS2QueryScorer) ScorePair(query models.QuerySpectrum, lib models.LibrarySpectrum, mzTolerance float64) (float64, int, error) {
	qEmb, err := s.embed(query.Peaks)
	if err != nil {
		return 0, 0, err
	}
	lEmb, err := s.embedLibrary(lib)
	if err != nil {
		return 0, 0, err
	}

	// Embeddings are unit length (or zero for empty spectra), so the dot
	// product is the cosine.
	var dot, qn, ln float64
	for i := range qEmb {
		dot += float64(qEmb[i] * lEmb[i])
		qn += float64(qEmb[i] * qEmb[i])
		ln += float64(lEmb[i] * lEmb[i])
	}
	score := 0.0
	if qn > 0 && ln > 0 {
		// Map cosine in [-1,1] to [0,1].
		score = (1 + dot) / 2
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	pairs := matchPeaks(query.Peaks, lib.Peaks, mzTolerance, 0, byProximity)
	return score, len(pairs), nil
}

func (s *MS2QueryScorer) embedLibrary(lib models.LibrarySpectrum) ([]float32, error) {
	s.mu.Lock()
	cached, ok := s.libCache[lib.ID]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}
	emb, err := s.embed(lib.Peaks)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.libCache[lib.ID] = emb
	s.mu.Unlock()
	return emb, nil
}

// embed bins peaks, runs the model, and returns a copy of the embedding.
// The session tensors are shared, so Run is serialized.
func (s *MS2QueryScorer) embed(peaks []models.Peak) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	input := s.inputTensor.GetData()
	for i := range input {
		input[i] = 0
	}
	for _, p := range peaks {
		bin := int(p.MZ)
		if bin < 0 || bin >= inputBins {
			continue
		}
		input[bin] += float32(math.Sqrt(p.Intensity))
	}

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("model inference failed: %w", err)
	}

	out := make([]float32, s.dimensions)
	copy(out, s.outputTensor.GetData())
	utils.NormalizeL2(out)
	return out, nil
}

// Close releases the ONNX session and tensors.
func (s *MS2QueryScorer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		s.session.Destroy()
		s.session = nil
	}
	if s.inputTensor != nil {
		s.inputTensor.Destroy()
		s.inputTensor = nil
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
		s.outputTensor = nil
	}
	return nil
}
