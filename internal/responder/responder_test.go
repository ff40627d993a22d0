package responder

import (
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/omnitrix-widget/internal/scheduler"
)

func seeded() *Responder {
	return New(WithRand(rand.New(rand.NewPCG(1, 2))))
}

func TestTextRulePriority(t *testing.T) {
	r := seeded()
	rules := DefaultRules()

	tests := []struct {
		in   string
		want string
	}{
		{"Hello there", rules[0].Reply},
		{"I need SUPPORT", rules[1].Reply},
		{"what does it cost", rules[2].Reply},
		{"found a bug", rules[3].Reply},
		{"thank you", rules[4].Reply},
		{"goodbye", rules[5].Reply},
		// "hi" is a substring of "this", so the greeting wins.
		{"this price is high", rules[0].Reply},
		// greeting outranks help
		{"hey, help me", rules[0].Reply},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.Text(tt.in), tt.in)
	}
}

func TestTextFallsBackToGenericPool(t *testing.T) {
	r := seeded()
	reply := r.Text("qwerty")
	assert.Contains(t, genericReplies, reply)
}

func TestImageReplyFromPool(t *testing.T) {
	r := seeded()
	for i := 0; i < 20; i++ {
		assert.Contains(t, imageReplies, r.Image())
	}
}

func TestDelayWithinBounds(t *testing.T) {
	r := seeded()
	for i := 0; i < 100; i++ {
		d := r.Delay(time.Second, 2500*time.Millisecond)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.LessOrEqual(t, d, 2500*time.Millisecond)
	}
	assert.Equal(t, time.Second, r.Delay(time.Second, time.Second))
}

func TestLoadRules(t *testing.T) {
	doc := `{"rules":[{"name":"refund","keywords":["refund"],"reply":"Refunds take 5 days."}]}`
	set, err := LoadRules(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, set.Rules, 1)
	assert.Equal(t, genericReplies, set.Generic)
	assert.Equal(t, imageReplies, set.Image)

	r := New(WithRuleSet(set), WithRand(rand.New(rand.NewPCG(3, 4))))
	assert.Equal(t, "Refunds take 5 days.", r.Text("REFUND please"))
	assert.Contains(t, genericReplies, r.Text("hello"))
}

func TestLoadRulesRejectsInvalid(t *testing.T) {
	_, err := LoadRules(strings.NewReader(`{"rules":[{"name":"x","keywords":[],"reply":""}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reply is required")
	assert.Contains(t, err.Error(), "keyword")

	_, err = LoadRules(strings.NewReader(`{"unknown":true}`))
	assert.Error(t, err)
}

func TestAgentSingleOutstandingReply(t *testing.T) {
	sched := scheduler.NewFake(time.Unix(0, 0))
	var (
		replies []string
		typing  []bool
	)
	agent := NewAgent(sched, seeded(), Hooks{
		Typing: func(on bool) { typing = append(typing, on) },
		Reply:  func(text string) { replies = append(replies, text) },
	})

	assert.True(t, agent.RespondText("hello", time.Second, 2*time.Second))
	assert.False(t, agent.RespondText("thanks", time.Second, 2*time.Second))
	assert.False(t, agent.RespondImage(time.Second, 2*time.Second))
	assert.True(t, agent.Pending())

	sched.Advance(999 * time.Millisecond)
	assert.Empty(t, replies)

	sched.Advance(time.Second + time.Millisecond)
	require.Len(t, replies, 1)
	assert.Equal(t, DefaultRules()[0].Reply, replies[0])
	assert.Equal(t, []bool{true, false}, typing)
	assert.False(t, agent.Pending())

	assert.True(t, agent.RespondImage(0, 0))
	sched.RunPending()
	require.Len(t, replies, 2)
	assert.Contains(t, imageReplies, replies[1])
}

func TestAgentStop(t *testing.T) {
	sched := scheduler.NewFake(time.Unix(0, 0))
	replied := false
	agent := NewAgent(sched, seeded(), Hooks{Reply: func(string) { replied = true }})

	agent.RespondText("hi", time.Second, time.Second)
	agent.Stop()
	sched.Advance(5 * time.Second)

	assert.False(t, replied)
	assert.False(t, agent.Pending())
	assert.Equal(t, 0, sched.Pending())
}
