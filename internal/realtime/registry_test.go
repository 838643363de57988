package realtime

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryJoinLeave(t *testing.T) {
	reg := NewRegistry(nil)
	a := NewClient(1, 4)
	b := NewClient(2, 4)

	assert.True(t, reg.Join(SessionTopic(10), a))
	assert.False(t, reg.Join(SessionTopic(10), a), "second join is a no-op")
	assert.True(t, reg.Join(SessionTopic(10), b))
	assert.Len(t, reg.Members(SessionTopic(10)), 2)

	assert.True(t, reg.Leave(SessionTopic(10), a))
	assert.False(t, reg.Leave(SessionTopic(10), a))
	assert.Len(t, reg.Members(SessionTopic(10)), 1)

	reg.Leave(SessionTopic(10), b)
	assert.Equal(t, 0, reg.GroupCount(), "empty groups are discarded")
}

func TestRegistryRemoveDropsAllMemberships(t *testing.T) {
	reg := NewRegistry(nil)
	c := NewClient(5, 4)
	other := NewClient(6, 4)

	reg.Join(UserTopic(5), c)
	reg.Join(SessionTopic(1), c)
	reg.Join(ConversationTopic(3), c)
	reg.Join(SessionTopic(1), other)

	left := reg.Remove(c)
	assert.ElementsMatch(t, []Topic{UserTopic(5), SessionTopic(1), ConversationTopic(3)}, left)
	assert.Empty(t, reg.Topics(c))
	assert.Equal(t, []*Client{other}, reg.Members(SessionTopic(1)))
	assert.Equal(t, 1, reg.GroupCount())
}

func TestRegistryConcurrentAccess(t *testing.T) {
	reg := NewRegistry(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := NewClient(int64(i), 4)
			topic := SessionTopic(int64(i % 5))
			reg.Join(topic, c)
			_ = reg.Members(topic)
			reg.Join(UserTopic(int64(i)), c)
			reg.Remove(c)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, reg.GroupCount())
}

func TestTopicKind(t *testing.T) {
	tests := []struct {
		topic Topic
		want  string
	}{
		{SessionTopic(1), "session"},
		{ConversationTopic(2), "conversation"},
		{UserTopic(3), "user"},
		{Topic("bogus"), "unknown"},
	}
	for _, tt := range tests {
		t.Run(string(tt.topic), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.topic.Kind())
		})
	}
	require.Equal(t, Topic("session:42"), SessionTopic(42))
	require.Equal(t, "conversation:7", fmt.Sprint(ConversationTopic(7)))
}
