// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package shutdown

import "testing"

func TestRun(t *testing.T) {
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		Register(func() { order = append(order, i) })
	}
	Run()
	if got, want := len(order), 3; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i, v := range order {
		if got, want := v, 2-i; got != want {
			t.Errorf("callback %d: got %v, want %v", i, got, want)
		}
	}
	// Callbacks run once.
	Run()
	if got, want := len(order), 3; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
