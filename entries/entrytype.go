// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package entries // import "github.com/facebookarchive/profilo-sub011/entries"

import "fmt"

// EntryType identifies the semantic meaning of an entry. The numeric values are
// part of the on-disk format and must never be reused.
type EntryType uint8

const (
	UnknownType                     EntryType = 0
	UIInputStart                    EntryType = 1
	UIInputEnd                      EntryType = 2
	UIUpdateStart                   EntryType = 3
	UIUpdateEnd                     EntryType = 4
	NetAdded                        EntryType = 5
	NetCancel                       EntryType = 6
	NetChangepri                    EntryType = 7
	NetError                        EntryType = 8
	NetEnd                          EntryType = 9
	NetResponse                     EntryType = 10
	NetRetry                        EntryType = 11
	NetStart                        EntryType = 12
	NetCounter                      EntryType = 13
	CallStart                       EntryType = 14
	CallEnd                         EntryType = 15
	AsyncCall                       EntryType = 16
	ServConn                        EntryType = 17
	ServDisconn                     EntryType = 18
	ServEnd                         EntryType = 19
	AdapterNotify                   EntryType = 20
	MarkFlag                        EntryType = 21
	MarkPush                        EntryType = 22
	MarkPop                         EntryType = 23
	LifecycleApplicationStart       EntryType = 24
	LifecycleApplicationEnd         EntryType = 25
	LifecycleActivityStart          EntryType = 26
	LifecycleActivityEnd            EntryType = 27
	LifecycleServiceStart           EntryType = 28
	LifecycleServiceEnd             EntryType = 29
	LifecycleBroadcastReceiverStart EntryType = 30
	LifecycleBroadcastReceiverEnd   EntryType = 31
	LifecycleContentProviderStart   EntryType = 32
	LifecycleContentProviderEnd     EntryType = 33
	LifecycleFragmentStart          EntryType = 34
	LifecycleFragmentEnd            EntryType = 35
	LifecycleViewStart              EntryType = 36
	LifecycleViewEnd                EntryType = 37
	TraceAbort                      EntryType = 38
	TraceEnd                        EntryType = 39
	TraceStart                      EntryType = 40
	TraceBackwards                  EntryType = 41
	TraceTimeout                    EntryType = 42
	Counter                         EntryType = 43
	StackFrame                      EntryType = 44
	QPLStart                        EntryType = 45
	QPLEnd                          EntryType = 46
	QPLCancel                       EntryType = 47
	QPLNote                         EntryType = 48
	QPLPoint                        EntryType = 49
	QPLEvent                        EntryType = 50
	TraceAnnotation                 EntryType = 51
	WaitStart                       EntryType = 52
	WaitEnd                         EntryType = 53
	WaitSignal                      EntryType = 54
	StringKey                       EntryType = 55
	StringValue                     EntryType = 56
	QPLTag                          EntryType = 57
	QPLAnnotation                   EntryType = 58
	TraceThreadName                 EntryType = 59
	TracePreEnd                     EntryType = 60
	TraceThreadPri                  EntryType = 61
	MinorFault                      EntryType = 62
	MajorFault                      EntryType = 63
	PerfeventsLost                  EntryType = 64
	ClassLoad                       EntryType = 65
	JavascriptStackFrame            EntryType = 66
	MessageStart                    EntryType = 67
	MessageEnd                      EntryType = 68
	ClassValue                      EntryType = 69
	HTTP2RequestInitiated           EntryType = 70
	HTTP2FrameHeader                EntryType = 71
	HTTP2WindowUpdate               EntryType = 72
	HTTP2Priority                   EntryType = 73
	HTTP2EgressFrameHeader          EntryType = 74
	ProcessList                     EntryType = 75
	IOStart                         EntryType = 76
	IOEnd                           EntryType = 77
	CPUCounter                      EntryType = 78
	ClassLoadStart                  EntryType = 79
	ClassLoadEnd                    EntryType = 80
	ClassLoadFailed                 EntryType = 81
	StringName                      EntryType = 82
	JavaFrameName                   EntryType = 83
	BinderStart                     EntryType = 84
	BinderEnd                       EntryType = 85
	MemoryAllocation                EntryType = 86
	StkErrEmptystack                EntryType = 87
	StkErrStackoverflow             EntryType = 88
	StkErrNostackforthread          EntryType = 89
	StkErrSignalinterrupt           EntryType = 90
	StkErrNestedunwind              EntryType = 91
	Mapping                         EntryType = 92
)

// numEntryTypes is one past the highest known EntryType.
const numEntryTypes = 93

var entryTypeNames = [numEntryTypes]string{
	UnknownType:                     "UNKNOWN_TYPE",
	UIInputStart:                    "UI_INPUT_START",
	UIInputEnd:                      "UI_INPUT_END",
	UIUpdateStart:                   "UI_UPDATE_START",
	UIUpdateEnd:                     "UI_UPDATE_END",
	NetAdded:                        "NET_ADDED",
	NetCancel:                       "NET_CANCEL",
	NetChangepri:                    "NET_CHANGEPRI",
	NetError:                        "NET_ERROR",
	NetEnd:                          "NET_END",
	NetResponse:                     "NET_RESPONSE",
	NetRetry:                        "NET_RETRY",
	NetStart:                        "NET_START",
	NetCounter:                      "NET_COUNTER",
	CallStart:                       "CALL_START",
	CallEnd:                         "CALL_END",
	AsyncCall:                       "ASYNC_CALL",
	ServConn:                        "SERV_CONN",
	ServDisconn:                     "SERV_DISCONN",
	ServEnd:                         "SERV_END",
	AdapterNotify:                   "ADAPTER_NOTIFY",
	MarkFlag:                        "MARK_FLAG",
	MarkPush:                        "MARK_PUSH",
	MarkPop:                         "MARK_POP",
	LifecycleApplicationStart:       "LIFECYCLE_APPLICATION_START",
	LifecycleApplicationEnd:         "LIFECYCLE_APPLICATION_END",
	LifecycleActivityStart:          "LIFECYCLE_ACTIVITY_START",
	LifecycleActivityEnd:            "LIFECYCLE_ACTIVITY_END",
	LifecycleServiceStart:           "LIFECYCLE_SERVICE_START",
	LifecycleServiceEnd:             "LIFECYCLE_SERVICE_END",
	LifecycleBroadcastReceiverStart: "LIFECYCLE_BROADCAST_RECEIVER_START",
	LifecycleBroadcastReceiverEnd:   "LIFECYCLE_BROADCAST_RECEIVER_END",
	LifecycleContentProviderStart:   "LIFECYCLE_CONTENT_PROVIDER_START",
	LifecycleContentProviderEnd:     "LIFECYCLE_CONTENT_PROVIDER_END",
	LifecycleFragmentStart:          "LIFECYCLE_FRAGMENT_START",
	LifecycleFragmentEnd:            "LIFECYCLE_FRAGMENT_END",
	LifecycleViewStart:              "LIFECYCLE_VIEW_START",
	LifecycleViewEnd:                "LIFECYCLE_VIEW_END",
	TraceAbort:                      "TRACE_ABORT",
	TraceEnd:                        "TRACE_END",
	TraceStart:                      "TRACE_START",
	TraceBackwards:                  "TRACE_BACKWARDS",
	TraceTimeout:                    "TRACE_TIMEOUT",
	Counter:                         "COUNTER",
	StackFrame:                      "STACK_FRAME",
	QPLStart:                        "QPL_START",
	QPLEnd:                          "QPL_END",
	QPLCancel:                       "QPL_CANCEL",
	QPLNote:                         "QPL_NOTE",
	QPLPoint:                        "QPL_POINT",
	QPLEvent:                        "QPL_EVENT",
	TraceAnnotation:                 "TRACE_ANNOTATION",
	WaitStart:                       "WAIT_START",
	WaitEnd:                         "WAIT_END",
	WaitSignal:                      "WAIT_SIGNAL",
	StringKey:                       "STRING_KEY",
	StringValue:                     "STRING_VALUE",
	QPLTag:                          "QPL_TAG",
	QPLAnnotation:                   "QPL_ANNOTATION",
	TraceThreadName:                 "TRACE_THREAD_NAME",
	TracePreEnd:                     "TRACE_PRE_END",
	TraceThreadPri:                  "TRACE_THREAD_PRI",
	MinorFault:                      "MINOR_FAULT",
	MajorFault:                      "MAJOR_FAULT",
	PerfeventsLost:                  "PERFEVENTS_LOST",
	ClassLoad:                       "CLASS_LOAD",
	JavascriptStackFrame:            "JAVASCRIPT_STACK_FRAME",
	MessageStart:                    "MESSAGE_START",
	MessageEnd:                      "MESSAGE_END",
	ClassValue:                      "CLASS_VALUE",
	HTTP2RequestInitiated:           "HTTP2_REQUEST_INITIATED",
	HTTP2FrameHeader:                "HTTP2_FRAME_HEADER",
	HTTP2WindowUpdate:               "HTTP2_WINDOW_UPDATE",
	HTTP2Priority:                   "HTTP2_PRIORITY",
	HTTP2EgressFrameHeader:          "HTTP2_EGRESS_FRAME_HEADER",
	ProcessList:                     "PROCESS_LIST",
	IOStart:                         "IO_START",
	IOEnd:                           "IO_END",
	CPUCounter:                      "CPU_COUNTER",
	ClassLoadStart:                  "CLASS_LOAD_START",
	ClassLoadEnd:                    "CLASS_LOAD_END",
	ClassLoadFailed:                 "CLASS_LOAD_FAILED",
	StringName:                      "STRING_NAME",
	JavaFrameName:                   "JAVA_FRAME_NAME",
	BinderStart:                     "BINDER_START",
	BinderEnd:                       "BINDER_END",
	MemoryAllocation:                "MEMORY_ALLOCATION",
	StkErrEmptystack:                "STKERR_EMPTYSTACK",
	StkErrStackoverflow:             "STKERR_STACKOVERFLOW",
	StkErrNostackforthread:          "STKERR_NOSTACKFORTHREAD",
	StkErrSignalinterrupt:           "STKERR_SIGNALINTERRUPT",
	StkErrNestedunwind:              "STKERR_NESTEDUNWIND",
	Mapping:                         "MAPPING",
}

var entryTypesByName = func() map[string]EntryType {
	m := make(map[string]EntryType, numEntryTypes)
	for i, name := range entryTypeNames {
		m[name] = EntryType(i)
	}
	return m
}()

// String returns the name used for the type in trace files.
func (t EntryType) String() string {
	if int(t) < len(entryTypeNames) {
		return entryTypeNames[t]
	}
	return fmt.Sprintf("UNKNOWN_TYPE_%d", uint8(t))
}

// ParseEntryType returns the EntryType for a name as printed by String.
func ParseEntryType(name string) (EntryType, error) {
	t, ok := entryTypesByName[name]
	if !ok {
		return UnknownType, fmt.Errorf("unknown entry type %q", name)
	}
	return t, nil
}

// IsTraceStart reports whether t opens a trace.
func (t EntryType) IsTraceStart() bool {
	return t == TraceStart || t == TraceBackwards
}

// IsTraceTerminal reports whether t ends or aborts a trace.
func (t EntryType) IsTraceTerminal() bool {
	return t == TraceEnd || t == TraceAbort || t == TraceTimeout
}
