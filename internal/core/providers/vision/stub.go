package vision

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dfeirstein/the-skin-lab/internal/domain/analysis"
)

// Stub is a deterministic, no-network provider for local runs and tests.
// Without scripted Fragments it streams a schema-valid analysis derived from
// the image so repeated uploads give the same result.
type Stub struct {
	Fragments []string
	// ChunkSize splits the generated analysis. Zero means 48 bytes.
	ChunkSize int
	Delay     time.Duration
	// OpenErr fails the request before any fragment.
	OpenErr error
	// FailErr is returned by Recv once FailAfter fragments have been sent.
	FailErr   error
	FailAfter int
}

func NewStub() *Stub {
	return &Stub{}
}

func (s *Stub) Stream(ctx context.Context, req analysis.ModelRequest) (analysis.FragmentStream, error) {
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	fragments := s.Fragments
	if fragments == nil {
		generated, err := generateAnalysis(req.ImageURL)
		if err != nil {
			return nil, err
		}
		fragments = chunk(generated, s.ChunkSize)
	}
	return &stubStream{ctx: ctx, stub: s, fragments: fragments}, nil
}

type stubStream struct {
	ctx       context.Context
	stub      *Stub
	fragments []string
	pos       int
}

func (st *stubStream) Recv() (string, error) {
	if st.stub.FailErr != nil && st.pos >= st.stub.FailAfter {
		return "", st.stub.FailErr
	}
	if st.pos >= len(st.fragments) {
		return "", io.EOF
	}
	if st.stub.Delay > 0 {
		select {
		case <-time.After(st.stub.Delay):
		case <-st.ctx.Done():
			return "", st.ctx.Err()
		}
	}
	fragment := st.fragments[st.pos]
	st.pos++
	return fragment, nil
}

func (st *stubStream) Close() error { return nil }

func generateAnalysis(seed string) (string, error) {
	sum := sha256.Sum256([]byte(seed))
	score := 5 + int(binary.BigEndian.Uint16(sum[:2])%5)
	skinTypes := []string{"dry", "oily", "combination", "normal", "sensitive"}

	out := analysis.Result{
		SkinScore:       float64(score),
		PrimaryConcerns: []string{"uneven tone", "fine lines", "dehydration"},
		SkinType:        skinTypes[int(sum[2])%len(skinTypes)],
		RecommendedTreatments: []analysis.Treatment{
			{Name: "HydraFacial", Purpose: "Deep cleanse and hydration", Frequency: "Monthly", ExpectedResults: "Brighter, more even texture"},
			{Name: "Microneedling", Purpose: "Collagen stimulation", Frequency: "Every 4-6 weeks, 3 sessions", ExpectedResults: "Softer fine lines"},
			{Name: "Chemical Peel", Purpose: "Resurface and even tone", Frequency: "Every 6 weeks", ExpectedResults: "Reduced discoloration"},
		},
		Timeline: analysis.Timeline{
			Immediate:   []string{"HydraFacial", "Barrier-repair skincare"},
			Enhancement: []string{"Microneedling series", "IPL photofacial"},
			Maintenance: []string{"Quarterly peels", "Monthly facials"},
		},
		Skincare: analysis.Skincare{
			Morning: []string{"Gentle cleanser", "Vitamin C serum", "Broad-spectrum SPF 50"},
			Evening: []string{"Double cleanse", "Retinol 0.3%", "Ceramide moisturizer"},
			Weekly:  []string{"Enzyme exfoliant", "Hydrating mask"},
		},
		Investment: analysis.Investment{
			Initial:   "$1,500 - $2,500",
			FirstYear: "$4,000 - $6,500",
		},
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal stub analysis: %w", err)
	}
	return string(b), nil
}

func chunk(text string, size int) []string {
	if size <= 0 {
		size = 48
	}
	out := make([]string, 0, len(text)/size+1)
	for len(text) > size {
		out = append(out, text[:size])
		text = text[size:]
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}
