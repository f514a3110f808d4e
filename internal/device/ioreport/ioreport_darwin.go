// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin && cgo

package ioreport

/*
#cgo LDFLAGS: -framework CoreFoundation -lIOReport
#include <CoreFoundation/CoreFoundation.h>
#include <stdint.h>
#include <stdlib.h>

typedef struct IOReportSubscriptionRef *ior_subscription_t;

extern CFMutableDictionaryRef IOReportCopyChannelsInGroup(CFStringRef group, CFStringRef subgroup, uint64_t a, uint64_t b, uint64_t c);
extern ior_subscription_t IOReportCreateSubscription(void *a, CFMutableDictionaryRef desired, CFMutableDictionaryRef *subbed, uint64_t channel_id, CFTypeRef b);
extern CFDictionaryRef IOReportCreateSamples(ior_subscription_t sub, CFMutableDictionaryRef subbed, CFTypeRef a);
extern CFDictionaryRef IOReportCreateSamplesDelta(CFDictionaryRef prev, CFDictionaryRef cur, CFTypeRef a);
extern CFStringRef IOReportChannelGetGroup(CFDictionaryRef sample);
extern CFStringRef IOReportChannelGetSubGroup(CFDictionaryRef sample);
extern CFStringRef IOReportChannelGetChannelName(CFDictionaryRef sample);
extern CFStringRef IOReportChannelGetUnitLabel(CFDictionaryRef sample);
extern int IOReportChannelGetFormat(CFDictionaryRef sample);
extern int64_t IOReportSimpleGetIntegerValue(CFDictionaryRef sample, void *a);
extern int32_t IOReportStateGetCount(CFDictionaryRef sample);
extern uint64_t IOReportStateGetResidency(CFDictionaryRef sample, int32_t index);
extern CFStringRef IOReportStateGetNameForIndex(CFDictionaryRef sample, int32_t index);

// ior_copy_cstring returns a malloc'ed UTF-8 copy of str; the caller frees it
static char *ior_copy_cstring(CFStringRef str) {
	if (str == NULL) {
		return NULL;
	}
	CFIndex length = CFStringGetLength(str);
	CFIndex size = CFStringGetMaximumSizeForEncoding(length, kCFStringEncodingUTF8) + 1;
	char *buf = malloc(size);
	if (buf == NULL) {
		return NULL;
	}
	if (!CFStringGetCString(str, buf, size, kCFStringEncodingUTF8)) {
		free(buf);
		return NULL;
	}
	return buf;
}

static CFArrayRef ior_channels(CFDictionaryRef samples) {
	if (samples == NULL) {
		return NULL;
	}
	CFTypeRef v = CFDictionaryGetValue(samples, CFSTR("IOReportChannels"));
	if (v == NULL || CFGetTypeID(v) != CFArrayGetTypeID()) {
		return NULL;
	}
	return (CFArrayRef)v;
}

static CFIndex ior_channel_count(CFDictionaryRef samples) {
	CFArrayRef arr = ior_channels(samples);
	return arr == NULL ? 0 : CFArrayGetCount(arr);
}

static CFDictionaryRef ior_channel_at(CFDictionaryRef samples, CFIndex i) {
	CFArrayRef arr = ior_channels(samples);
	if (arr == NULL) {
		return NULL;
	}
	CFTypeRef v = CFArrayGetValueAtIndex(arr, i);
	if (v == NULL || CFGetTypeID(v) != CFDictionaryGetTypeID()) {
		return NULL;
	}
	return (CFDictionaryRef)v;
}

static ior_subscription_t ior_subscribe(const char *group, CFMutableDictionaryRef *channels, CFMutableDictionaryRef *subbed) {
	CFStringRef g = CFStringCreateWithCString(kCFAllocatorDefault, group, kCFStringEncodingUTF8);
	if (g == NULL) {
		return NULL;
	}
	*channels = IOReportCopyChannelsInGroup(g, NULL, 0, 0, 0);
	CFRelease(g);
	if (*channels == NULL) {
		return NULL;
	}
	return IOReportCreateSubscription(NULL, *channels, subbed, 0, NULL);
}

static void ior_release(CFTypeRef ref) {
	if (ref != NULL) {
		CFRelease(ref);
	}
}
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"
)

type platformSource struct{}

// NewSource returns the IOReport backed Source of this platform
func NewSource() Source {
	return &platformSource{}
}

func (s *platformSource) Name() string {
	return "ioreport"
}

func (s *platformSource) Subscribe(group string) (Subscription, error) {
	cGroup := C.CString(group)
	defer C.free(unsafe.Pointer(cGroup))

	var channels, subbed C.CFMutableDictionaryRef
	sub := C.ior_subscribe(cGroup, &channels, &subbed)
	if sub == nil {
		C.ior_release(C.CFTypeRef(channels))
		C.ior_release(C.CFTypeRef(subbed))
		return nil, fmt.Errorf("failed to subscribe to ioreport group %q", group)
	}

	return &subscription{
		sub:      sub,
		channels: channels,
		subbed:   subbed,
	}, nil
}

// subscription is not safe for concurrent Sample and Close calls beyond what
// its mutex serializes; the sampler only ever uses it from one goroutine.
type subscription struct {
	mu       sync.Mutex
	sub      C.ior_subscription_t
	channels C.CFMutableDictionaryRef
	subbed   C.CFMutableDictionaryRef
	closed   bool
}

func (s *subscription) Sample() (Samples, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("ioreport subscription is closed")
	}

	ref := C.IOReportCreateSamples(s.sub, s.subbed, 0)
	if ref == 0 {
		return nil, fmt.Errorf("ioreport returned no samples")
	}
	return &samples{ref: ref}, nil
}

func (s *subscription) Delta(prev, cur Samples) (Samples, error) {
	p, ok := prev.(*samples)
	if !ok {
		return nil, fmt.Errorf("unexpected samples type %T", prev)
	}
	c, ok := cur.(*samples)
	if !ok {
		return nil, fmt.Errorf("unexpected samples type %T", cur)
	}
	if p.ref == 0 || c.ref == 0 {
		return nil, ErrReleased
	}

	ref := C.IOReportCreateSamplesDelta(p.ref, c.ref, 0)
	if ref == 0 {
		return nil, fmt.Errorf("ioreport returned no delta")
	}
	return &samples{ref: ref}, nil
}

func (s *subscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	C.ior_release(C.CFTypeRef(unsafe.Pointer(s.sub)))
	C.ior_release(C.CFTypeRef(s.subbed))
	C.ior_release(C.CFTypeRef(s.channels))
	return nil
}

type samples struct {
	ref C.CFDictionaryRef
}

func (s *samples) Iterate(fn func(Channel) IterAction) {
	if s.ref == 0 {
		return
	}

	n := int(C.ior_channel_count(s.ref))
	for i := range n {
		item := C.ior_channel_at(s.ref, C.CFIndex(i))
		if item == 0 {
			continue
		}
		if fn(readChannel(item)) == IterStop {
			return
		}
	}
}

func (s *samples) Release() {
	if s.ref == 0 {
		return
	}
	C.ior_release(C.CFTypeRef(s.ref))
	s.ref = 0
}

func readChannel(item C.CFDictionaryRef) Channel {
	ch := Channel{
		Group:    goString(C.IOReportChannelGetGroup(item)),
		SubGroup: goString(C.IOReportChannelGetSubGroup(item)),
		Name:     goString(C.IOReportChannelGetChannelName(item)),
		Unit:     goString(C.IOReportChannelGetUnitLabel(item)),
		Format:   Format(C.IOReportChannelGetFormat(item)),
	}

	switch ch.Format {
	case FormatSimple:
		ch.Value = int64(C.IOReportSimpleGetIntegerValue(item, nil))

	case FormatState:
		n := int(C.IOReportStateGetCount(item))
		ch.States = make([]State, 0, n)
		for i := range n {
			idx := C.int32_t(i)
			ch.States = append(ch.States, State{
				Name:      goString(C.IOReportStateGetNameForIndex(item, idx)),
				Residency: uint64(C.IOReportStateGetResidency(item, idx)),
			})
		}
	}

	return ch
}

func goString(str C.CFStringRef) string {
	if str == 0 {
		return ""
	}
	cstr := C.ior_copy_cstring(str)
	if cstr == nil {
		return ""
	}
	defer C.free(unsafe.Pointer(cstr))
	return C.GoString(cstr)
}
