package types

import "testing"

// Wire encodings below are fixed by proxy_abi_version_0_2_0. A failure here
// means an enum was renumbered, which is an ABI break.
func TestWireEncodings(t *testing.T) {
	if ActionContinue != 0 || ActionPause != 1 {
		t.Fatal("Action encoding changed")
	}
	if StatusNotFound != 1 || StatusEmpty != 7 || StatusCasMismatch != 8 ||
		StatusInternalFailure != 10 || StatusUnimplemented != 12 {
		t.Fatal("Status encoding changed")
	}
	if BufferTypeHttpRequestBody != 0 || BufferTypePluginConfiguration != 7 {
		t.Fatal("BufferType encoding changed")
	}
	if MapTypeHttpRequestHeaders != 0 || MapTypeHttpCallResponseTrailers != 7 {
		t.Fatal("MapType encoding changed")
	}
	if LogLevelTrace != 0 || LogLevelCritical != 5 {
		t.Fatal("LogLevel encoding changed")
	}
}

func TestContextKind_String(t *testing.T) {
	tests := []struct {
		kind ContextKind
		want string
	}{
		{ContextKindRoot, "root"},
		{ContextKindHttpStream, "http-stream"},
		{ContextKindTcpStream, "tcp-stream"},
		{ContextKind(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("ContextKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestDefaults_AreNoops(t *testing.T) {
	var h DefaultHttpContext
	if h.OnHttpRequestHeaders(0, false) != ActionContinue {
		t.Error("default http context should continue")
	}
	var c DefaultTcpContext
	if c.OnNewConnection() != ActionContinue {
		t.Error("default tcp context should continue")
	}
	var r DefaultRootContext
	if !r.OnVMStart(0) || !r.OnConfigure(0) {
		t.Error("default root context should accept configuration")
	}
	if r.NewHttpContext(1) != nil || r.NewTcpContext(1) != nil {
		t.Error("default root context should not spawn stream contexts")
	}
}
