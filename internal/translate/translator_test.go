package translate

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// tagBackend 把分块包成 <chunk>，并随机延迟，打乱完成顺序
type tagBackend struct {
	mu    sync.Mutex
	calls []string
	fail  func(string) bool
}

func (b *tagBackend) Translate(ctx context.Context, text, targetLang string) (string, error) {
	time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
	b.mu.Lock()
	b.calls = append(b.calls, text)
	b.mu.Unlock()
	if b.fail != nil && b.fail(text) {
		return "", errors.New("boom")
	}
	return "<" + text + ">", nil
}

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Translate(ctx context.Context, text, targetLang string) (string, error) {
	args := m.Called(ctx, text, targetLang)
	return args.String(0), args.Error(1)
}

func longText(sentences int) string {
	var sb strings.Builder
	for i := 0; i < sentences; i++ {
		fmt.Fprintf(&sb, "Sentence number %03d is here to fill some room in the post. ", i)
	}
	return sb.String()
}

func TestChunk_ShortTextIsSingleChunk(t *testing.T) {
	assert.Nil(t, Chunk("", 800))
	assert.Equal(t, []string{"hello. world!"}, Chunk("hello. world!", 800))
}

func TestChunk_Lossless(t *testing.T) {
	inputs := []string{
		longText(40),
		strings.Repeat("第一句。第二句！第三句？\n\n", 80),
		strings.Repeat("no terminator at all ", 100),
		"leading text without end " + longText(30) + "tail without terminator",
		strings.Repeat("😀", 900),
	}
	for _, in := range inputs {
		chunks := Chunk(in, 800)
		require.Greater(t, len(chunks), 1)
		assert.Equal(t, in, strings.Join(chunks, ""))
		for _, c := range chunks {
			assert.LessOrEqual(t, utf16Len(c), 800)
			assert.NotEmpty(t, c)
		}
	}
}

func TestChunk_BreaksOnSentenceBoundaries(t *testing.T) {
	in := longText(40)
	for _, c := range Chunk(in, 800) {
		assert.True(t, strings.HasSuffix(c, ". "), "chunk should end on a sentence: %q", c[len(c)-10:])
	}
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("Hi!! How are you?  Fine.\n\nOK")
	assert.Equal(t, []string{"Hi!! ", "How are you?  ", "Fine.\n\n", "OK"}, got)
}

func TestUTF16Len(t *testing.T) {
	assert.Equal(t, 5, utf16Len("hello"))
	assert.Equal(t, 2, utf16Len("中文"))
	assert.Equal(t, 2, utf16Len("😀"))
}

func TestTranslate_SingleCallForShortText(t *testing.T) {
	b := &mockBackend{}
	b.On("Translate", mock.Anything, "hello", "zh-TW").Return("你好", nil).Once()

	tr := New(b)
	assert.Equal(t, "你好", tr.Translate(context.Background(), "hello"))
	b.AssertExpectations(t)
}

func TestTranslate_EmptyTextMakesNoCalls(t *testing.T) {
	b := &mockBackend{}
	tr := New(b)
	assert.Equal(t, "", tr.Translate(context.Background(), ""))
	b.AssertNotCalled(t, "Translate", mock.Anything, mock.Anything, mock.Anything)
}

func TestTranslate_PreservesChunkOrder(t *testing.T) {
	in := longText(60)
	chunks := Chunk(in, 800)
	require.Greater(t, len(chunks), 2)

	b := &tagBackend{}
	tr := New(b, WithCacheSize(0))
	got := tr.Translate(context.Background(), in)

	var want strings.Builder
	for _, c := range chunks {
		want.WriteString("<" + c + ">")
	}
	assert.Equal(t, want.String(), got)
	assert.Len(t, b.calls, len(chunks))
	for _, c := range b.calls {
		assert.LessOrEqual(t, utf16Len(c), 800)
	}
}

func TestTranslate_FailedChunkKeepsOriginal(t *testing.T) {
	in := longText(60)
	chunks := Chunk(in, 800)
	require.Greater(t, len(chunks), 2)

	b := &tagBackend{fail: func(s string) bool { return s == chunks[1] }}
	tr := New(b, WithCacheSize(0))
	got := tr.Translate(context.Background(), in)

	var want strings.Builder
	for i, c := range chunks {
		if i == 1 {
			want.WriteString(c)
			continue
		}
		want.WriteString("<" + c + ">")
	}
	assert.Equal(t, want.String(), got)
}

func TestTranslate_CachesSuccessfulChunks(t *testing.T) {
	b := &mockBackend{}
	b.On("Translate", mock.Anything, "hello", "ja").Return("こんにちは", nil).Once()

	tr := New(b, WithTargetLang("ja"))
	assert.Equal(t, "こんにちは", tr.Translate(context.Background(), "hello"))
	assert.Equal(t, "こんにちは", tr.Translate(context.Background(), "hello"))
	b.AssertNumberOfCalls(t, "Translate", 1)
}

func TestTranslate_DoesNotCacheFailures(t *testing.T) {
	b := &mockBackend{}
	b.On("Translate", mock.Anything, "hello", "zh-TW").Return("", errors.New("down")).Twice()

	tr := New(b)
	assert.Equal(t, "hello", tr.Translate(context.Background(), "hello"))
	assert.Equal(t, "hello", tr.Translate(context.Background(), "hello"))
	b.AssertNumberOfCalls(t, "Translate", 2)
}
