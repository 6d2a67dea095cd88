package serialmux

import (
	"errors"
	"testing"
)

func TestNewRealSerialMux(t *testing.T) {
	// There is no board attached in unit tests; opening a missing device
	// must fail cleanly.
	mux, err := NewRealSerialMux("/dev/nonexistent-serial-port-12345", PortOptions{})
	if err == nil {
		t.Error("Expected error when opening non-existent serial port")
		mux.Close()
	}
	if err != nil && mux != nil {
		t.Error("Expected nil mux when error is returned")
	}
}

func TestRealSerialPortFactory_Open_InvalidPath(t *testing.T) {
	factory := NewRealSerialPortFactory()

	for _, mode := range []*SerialPortMode{nil, {BaudRate: 9600, DataBits: 7, Parity: EvenParity, StopBits: TwoStopBits}} {
		if _, err := factory.Open("/dev/nonexistent-serial-port-12345", mode); err == nil {
			t.Errorf("Expected error when opening non-existent serial port with mode %+v", mode)
		}
	}
}

func TestOpenSerialMux_UsesFactory(t *testing.T) {
	port := NewTestableSerialPort()
	factory := NewMockSerialPortFactory(port)

	mux, err := OpenSerialMux(factory, "/dev/ttyACM0", PortOptions{BaudRate: 57600})
	if err != nil {
		t.Fatalf("OpenSerialMux() error = %v", err)
	}
	if err := mux.SendCommand("U"); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	if got := string(port.GetWrittenData()); got != "U\n" {
		t.Errorf("written = %q, want %q", got, "U\n")
	}

	call := factory.LastCall()
	if call == nil {
		t.Fatal("factory was not called")
	}
	if call.Path != "/dev/ttyACM0" || call.Mode.BaudRate != 57600 {
		t.Errorf("unexpected open call %+v", call)
	}
}

func TestOpenSerialMux_Errors(t *testing.T) {
	factory := NewMockSerialPortFactory(nil)
	factory.Error = errors.New("busy")

	if _, err := OpenSerialMux(factory, "/dev/ttyACM0", PortOptions{}); err == nil {
		t.Error("expected open error to be returned")
	}
	if _, err := OpenSerialMux(factory, "/dev/ttyACM0", PortOptions{Parity: "Q"}); err == nil {
		t.Error("expected invalid options to be rejected")
	}
	if len(factory.OpenCalls) != 1 {
		t.Errorf("invalid options must not reach the factory, got %d calls", len(factory.OpenCalls))
	}
}
