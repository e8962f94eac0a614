// Package bus is the in-process topic pub/sub used between services.
// Topics are token paths; subscriptions may use "+" (one level) and "#"
// (remaining levels, including none). Retained messages are replayed to new
// matching subscribers.
package bus

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

const (
	wildOne  = "+"
	wildRest = "#"
)

// -----------------------------------------------------------------------------
// Topics
// -----------------------------------------------------------------------------

// Topic is a sequence of comparable tokens (usually strings or ints).
type Topic []any

// T builds a Topic and panics on non-comparable tokens.
func T(tokens ...any) Topic {
	for _, tok := range tokens {
		if tok == nil || !reflect.TypeOf(tok).Comparable() {
			panic(fmt.Sprintf("bus: non-comparable topic token %T", tok))
		}
	}
	return Topic(tokens)
}

func (t Topic) Len() int      { return len(t) }
func (t Topic) At(i int) any  { return t[i] }
func (t Topic) String() string {
	parts := make([]string, len(t))
	for i, tok := range t {
		parts[i] = fmt.Sprint(tok)
	}
	return strings.Join(parts, "/")
}

// Match reports whether topic is selected by pattern.
func Match(pattern, topic Topic) bool {
	for i, p := range pattern {
		if p == wildRest {
			return true
		}
		if i >= len(topic) {
			return false
		}
		if p != wildOne && p != topic[i] {
			return false
		}
	}
	return len(pattern) == len(topic)
}

// -----------------------------------------------------------------------------
// Message
// -----------------------------------------------------------------------------

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
}

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	topic Topic
	ch    chan *Message
	conn  *Connection
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// -----------------------------------------------------------------------------
// Trie node (subscriptions keyed by pattern tokens)
// -----------------------------------------------------------------------------

type node struct {
	children map[any]*node
	subs     []*Subscription
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

type Bus struct {
	mu       sync.Mutex
	root     *node
	retained map[string]*Message
	qLen     int
}

// NewBus creates a new bus with the given subscription queue length.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8
	}
	return &Bus{
		root:     &node{},
		retained: map[string]*Message{},
		qLen:     queueLen,
	}
}

// NewMessage builds a message; T's comparability check applies to topic.
func (b *Bus) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: T(topic...), Payload: payload, Retained: retained}
}

func (b *Bus) addSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	for _, tok := range sub.topic {
		if n.children == nil {
			n.children = make(map[any]*node)
		}
		child, ok := n.children[tok]
		if !ok {
			child = &node{}
			n.children[tok] = child
		}
		n = child
	}
	n.subs = append(n.subs, sub)

	for _, m := range b.retained {
		if Match(sub.topic, m.Topic) {
			deliver(sub, m)
		}
	}
}

// Publish delivers msg to all matching subscribers and updates the retained
// store. A retained message with a nil payload clears the retained entry.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if msg.Retained {
		key := msg.Topic.String()
		if msg.Payload == nil {
			delete(b.retained, key)
		} else {
			b.retained[key] = msg
		}
	}
	b.walk(b.root, msg.Topic, 0, msg)
}

func (b *Bus) walk(n *node, topic Topic, depth int, msg *Message) {
	if n.children == nil {
		if depth == len(topic) {
			for _, s := range n.subs {
				deliver(s, msg)
			}
		}
		return
	}
	if rest, ok := n.children[wildRest]; ok {
		for _, s := range rest.subs {
			deliver(s, msg)
		}
	}
	if depth == len(topic) {
		for _, s := range n.subs {
			deliver(s, msg)
		}
		return
	}
	if child, ok := n.children[topic[depth]]; ok {
		b.walk(child, topic, depth+1, msg)
	}
	if topic[depth] != wildOne {
		if child, ok := n.children[wildOne]; ok {
			b.walk(child, topic, depth+1, msg)
		}
	}
}

// deliver never blocks: when the queue is full the oldest message is dropped.
func deliver(sub *Subscription, msg *Message) {
	for {
		select {
		case sub.ch <- msg:
			return
		default:
		}
		select {
		case <-sub.ch:
		default:
		}
	}
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	stack := make([]*node, 0, len(sub.topic))
	for _, tok := range sub.topic {
		child, ok := n.children[tok]
		if !ok {
			return
		}
		stack = append(stack, n)
		n = child
	}
	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}
	// Prune empty nodes.
	for i := len(sub.topic) - 1; i >= 0; i-- {
		parent := stack[i]
		key := sub.topic[i]
		child := parent.children[key]
		if len(child.subs) != 0 || len(child.children) != 0 {
			break
		}
		delete(parent.children, key)
	}
}

// Retained returns the retained message on an exact topic, if any.
func (b *Bus) Retained(topic Topic) (*Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.retained[topic.String()]
	return m, ok
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

type Connection struct {
	bus  *Bus
	id   string
	mu   sync.Mutex
	subs []*Subscription
}

// NewConnection creates a new connection bound to this bus.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

func (c *Connection) ID() string { return c.id }
func (c *Connection) Bus() *Bus  { return c.bus }

func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(topic, payload, retained)
}

// Publish sends a message via the bus.
func (c *Connection) Publish(msg *Message) {
	c.bus.Publish(msg)
}

// Subscribe registers a subscription owned by this connection.
func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: T(topic...),
		ch:    make(chan *Message, c.bus.qLen),
		conn:  c,
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	c.bus.addSubscription(sub)
	return sub
}

// Unsubscribe removes a subscription owned by this connection and closes
// its channel.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.mu.Lock()
	found := false
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			found = true
			break
		}
	}
	c.mu.Unlock()
	if !found {
		return
	}
	c.bus.unsubscribe(sub)
	close(sub.ch)
}

// Disconnect closes all subscriptions and clears them.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.bus.unsubscribe(sub)
		close(sub.ch)
	}
}
