package cache

import (
	"testing"
	"time"
)

func TestSetGet(t *testing.T) {
	c := NewInMemoryCache[string, int](time.Minute)
	c.Set("a", 1, 0)

	v, ok := c.Get("a")
	if !ok || v != 1 {
		t.Errorf("Get = (%d, %v)", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Errorf("missing key should not be found")
	}
}

func TestExpiry(t *testing.T) {
	c := NewInMemoryCache[string, int](time.Minute)
	c.Set("a", 1, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Errorf("expired key should not be found")
	}
}

func TestDeleteAndClear(t *testing.T) {
	c := NewInMemoryCache[string, int](time.Minute)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Errorf("deleted key should not be found")
	}
	if c.Size() != 1 {
		t.Errorf("Size = %d", c.Size())
	}

	c.Clear()
	if c.Size() != 0 {
		t.Errorf("Size after Clear = %d", c.Size())
	}
}
