package split

import (
	"bytes"
	"io"
	"math"
	"testing"

	"sdae_lib/he"
	"sdae_lib/sdae"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

func TestProtocolRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)

	cts := [][]byte{[]byte("row 0"), []byte("row 1")}
	if err := writer.SendEncode(3, cts); err != nil {
		t.Fatalf("SendEncode failed: %v", err)
	}

	reader := NewProtocol(&buf, nil)
	payload, err := reader.ReceiveEncode()
	if err != nil {
		t.Fatalf("ReceiveEncode failed: %v", err)
	}
	if payload.BatchID != 3 {
		t.Errorf("BatchID = %d, want 3", payload.BatchID)
	}
	if len(payload.Ciphertexts) != 2 || !bytes.Equal(payload.Ciphertexts[1], cts[1]) {
		t.Errorf("Ciphertexts mismatch")
	}
}

func TestProtocolHandshakeMessages(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)
	if err := writer.SendModelInfo(ModelInfo{InDim: 784, OutDim: 500, Dims: []int{784, 500, 10}, RunID: "abc"}); err != nil {
		t.Fatalf("SendModelInfo failed: %v", err)
	}
	if err := writer.SendKeys([]byte("params"), []byte("evk")); err != nil {
		t.Fatalf("SendKeys failed: %v", err)
	}
	if err := writer.SendProjection(7, [][][]byte{{[]byte("g0"), []byte("g1")}}); err != nil {
		t.Fatalf("SendProjection failed: %v", err)
	}

	reader := NewProtocol(&buf, nil)
	info, err := reader.ReceiveModelInfo()
	if err != nil {
		t.Fatalf("ReceiveModelInfo failed: %v", err)
	}
	if info.InDim != 784 || info.OutDim != 500 || len(info.Dims) != 3 || info.RunID != "abc" {
		t.Errorf("ModelInfo = %+v", info)
	}
	keys, err := reader.ReceiveKeys()
	if err != nil {
		t.Fatalf("ReceiveKeys failed: %v", err)
	}
	if string(keys.Params) != "params" || string(keys.EvalKey) != "evk" {
		t.Errorf("Keys = %+v", keys)
	}
	proj, err := reader.ReceiveProjection()
	if err != nil {
		t.Fatalf("ReceiveProjection failed: %v", err)
	}
	if proj.BatchID != 7 || len(proj.Rows) != 1 || len(proj.Rows[0]) != 2 {
		t.Errorf("Projection = %+v", proj)
	}
}

func TestProtocolDone(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)

	if err := writer.SendDone(); err != nil {
		t.Fatalf("SendDone failed: %v", err)
	}

	reader := NewProtocol(&buf, nil)
	_, err := reader.ReceiveEncode()
	if err != io.EOF {
		t.Errorf("Expected io.EOF after done, got %v", err)
	}
}

func TestProtocolError(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)

	if err := writer.SendError(io.ErrUnexpectedEOF); err != nil {
		t.Fatalf("SendError failed: %v", err)
	}

	reader := NewProtocol(&buf, nil)
	if _, err := reader.ReceiveProjection(); err == nil {
		t.Errorf("Expected error after SendError")
	}
}

func TestProtocolUnexpectedType(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)
	if err := writer.SendKeys(nil, nil); err != nil {
		t.Fatal(err)
	}
	reader := NewProtocol(&buf, nil)
	if _, err := reader.ReceiveEncode(); err == nil {
		t.Error("expected type mismatch error")
	}
}

func TestMessageTypes(t *testing.T) {
	want := map[MessageType]int{
		MsgModelInfo:      0,
		MsgKeys:           1,
		MsgEncodeRequest:  2,
		MsgEncodeResponse: 3,
		MsgDone:           4,
		MsgError:          5,
	}
	for mt, v := range want {
		if int(mt) != v {
			t.Errorf("message type %d, want %d", mt, v)
		}
	}
}

// pipePair connects a client and a server protocol in memory.
func pipePair() (client, server *Protocol, closeAll func()) {
	c2sR, c2sW := io.Pipe()
	s2cR, s2cW := io.Pipe()
	client = NewProtocol(s2cR, c2sW)
	server = NewProtocol(c2sR, s2cW)
	return client, server, func() {
		c2sW.Close()
		s2cW.Close()
	}
}

func TestEncodeEndToEnd(t *testing.T) {
	opts := sdae.DefaultStackOptions()
	opts.Seed = 5
	stack, err := sdae.NewStackedDenoisingAutoencoder([]int{12, 6, 3}, opts)
	if err != nil {
		t.Fatal(err)
	}
	params, err := he.NewParameters(13)
	if err != nil {
		t.Fatal(err)
	}

	cp, sp, closeAll := pipePair()
	defer closeAll()
	done := make(chan error, 1)
	go func() {
		done <- NewServer(stack, "test").Serve(sp)
	}()

	client, err := NewClient(cp, params)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client.Info.InDim != 12 || client.Info.OutDim != 6 {
		t.Fatalf("Info = %+v", client.Info)
	}

	rng := rand.New(rand.NewSource(1))
	x := mat.NewDense(3, 12, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 12; j++ {
			x.Set(i, j, rng.Float64())
		}
	}
	pre, err := client.Encode(x)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := stack.EncodeTail(pre)
	if err != nil {
		t.Fatalf("EncodeTail: %v", err)
	}
	want, err := stack.Encode(x)
	if err != nil {
		t.Fatal(err)
	}
	r, c := want.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if d := math.Abs(got.At(i, j) - want.At(i, j)); d > 1e-3 {
				t.Errorf("code[%d][%d] = %f, want %f", i, j, got.At(i, j), want.At(i, j))
			}
		}
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Serve: %v", err)
	}
}

func TestClientRejectsWrongWidth(t *testing.T) {
	stack, err := sdae.NewStackedDenoisingAutoencoder([]int{4, 2}, sdae.DefaultStackOptions())
	if err != nil {
		t.Fatal(err)
	}
	params, err := he.NewParameters(13)
	if err != nil {
		t.Fatal(err)
	}
	cp, sp, closeAll := pipePair()
	defer closeAll()
	done := make(chan error, 1)
	go func() { done <- NewServer(stack, "").Serve(sp) }()

	client, err := NewClient(cp, params)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.Encode(mat.NewDense(1, 5, nil)); err == nil {
		t.Error("expected width error")
	}
	if err := client.Close(); err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Serve: %v", err)
	}
}
