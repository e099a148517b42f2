package wpa

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	service       = "fi.w1.wpa_supplicant1"
	rootPath      = dbus.ObjectPath("/fi/w1/wpa_supplicant1")
	ifaceName     = "fi.w1.wpa_supplicant1.Interface"
	bssName       = "fi.w1.wpa_supplicant1.BSS"
	networkName   = "fi.w1.wpa_supplicant1.Network"
	propertiesGet = "org.freedesktop.DBus.Properties.GetAll"
)

// supplicant is a thin wrapper over one wpa_supplicant interface object.
type supplicant struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// attach finds ifname in wpa_supplicant, creating it when it is not managed yet.
func attach(conn *dbus.Conn, ifname string) (*supplicant, error) {
	root := conn.Object(service, rootPath)

	var path dbus.ObjectPath
	err := root.Call(service+".GetInterface", 0, ifname).Store(&path)
	if err != nil {
		args := map[string]interface{}{"Ifname": ifname}
		if cerr := root.Call(service+".CreateInterface", 0, args).Store(&path); cerr != nil {
			return nil, fmt.Errorf("could not find or create interface %s: %v (create: %w)", ifname, err, cerr)
		}
	}

	return &supplicant{conn: conn, obj: conn.Object(service, path)}, nil
}

func (s *supplicant) path() dbus.ObjectPath {
	return s.obj.Path()
}

func (s *supplicant) call(method string, args ...interface{}) *dbus.Call {
	return s.obj.Call(ifaceName+"."+method, 0, args...)
}

func (s *supplicant) scan() error {
	if call := s.call("Scan", map[string]interface{}{"Type": "active"}); call.Err != nil {
		return fmt.Errorf("could not start scan: %w", call.Err)
	}
	return nil
}

func (s *supplicant) state() (string, error) {
	v, err := s.obj.GetProperty(ifaceName + ".State")
	if err != nil {
		return "", fmt.Errorf("could not read state: %w", err)
	}
	state, _ := v.Value().(string)
	return state, nil
}

func (s *supplicant) bssPaths() ([]dbus.ObjectPath, error) {
	v, err := s.obj.GetProperty(ifaceName + ".BSSs")
	if err != nil {
		return nil, fmt.Errorf("could not get BSSs: %w", err)
	}
	paths, ok := v.Value().([]dbus.ObjectPath)
	if !ok {
		return nil, fmt.Errorf("unexpected BSSs type %T", v.Value())
	}
	return paths, nil
}

func (s *supplicant) networkPaths() ([]dbus.ObjectPath, error) {
	v, err := s.obj.GetProperty(ifaceName + ".Networks")
	if err != nil {
		return nil, fmt.Errorf("could not get networks: %w", err)
	}
	paths, _ := v.Value().([]dbus.ObjectPath)
	return paths, nil
}

func (s *supplicant) addNetwork(args map[string]interface{}) (dbus.ObjectPath, error) {
	var path dbus.ObjectPath
	if err := s.call("AddNetwork", args).Store(&path); err != nil {
		return "", fmt.Errorf("could not add network: %w", err)
	}
	return path, nil
}

func (s *supplicant) selectNetwork(path dbus.ObjectPath) error {
	if call := s.call("SelectNetwork", path); call.Err != nil {
		return fmt.Errorf("could not select network: %w", call.Err)
	}
	return nil
}

func (s *supplicant) removeAllNetworks() error {
	if call := s.call("RemoveAllNetworks"); call.Err != nil {
		return fmt.Errorf("could not remove networks: %w", call.Err)
	}
	return nil
}

func (s *supplicant) disconnect() error {
	if call := s.call("Disconnect"); call.Err != nil {
		return fmt.Errorf("could not disconnect: %w", call.Err)
	}
	return nil
}

func (s *supplicant) reconnect() error {
	if call := s.call("Reconnect"); call.Err != nil {
		return fmt.Errorf("could not reconnect: %w", call.Err)
	}
	return nil
}

// networkSSID reads the ssid property of a configured network. wpa_supplicant
// reports it quoted.
func (s *supplicant) networkSSID(path dbus.ObjectPath) (string, error) {
	v, err := s.conn.Object(service, path).GetProperty(networkName + ".Properties")
	if err != nil {
		return "", fmt.Errorf("could not read network properties: %w", err)
	}
	props, _ := v.Value().(map[string]dbus.Variant)
	ssid, _ := props["ssid"].Value().(string)
	return unquote(ssid), nil
}

// bssProperties fetches every property of one BSS object.
func (s *supplicant) bssProperties(path dbus.ObjectPath) (map[string]dbus.Variant, error) {
	call := s.conn.Object(service, path).Call(propertiesGet, 0, bssName)
	if call.Err != nil {
		return nil, fmt.Errorf("could not get BSS properties: %w", call.Err)
	}
	var props map[string]dbus.Variant
	if err := call.Store(&props); err != nil {
		return nil, fmt.Errorf("could not decode BSS properties: %w", err)
	}
	return props, nil
}

// watchScanDone delivers the ScanDone signal of this interface on done until
// cancel is called.
func (s *supplicant) watchScanDone(done chan<- bool) (cancel func(), err error) {
	match := []dbus.MatchOption{
		dbus.WithMatchInterface(ifaceName),
		dbus.WithMatchMember("ScanDone"),
		dbus.WithMatchObjectPath(s.path()),
	}
	if err := s.conn.AddMatchSignal(match...); err != nil {
		return nil, fmt.Errorf("could not add signal match: %w", err)
	}

	signals := make(chan *dbus.Signal, 8)
	s.conn.Signal(signals)
	stop := make(chan struct{})

	go func() {
		for {
			select {
			case <-stop:
				return
			case sig, ok := <-signals:
				if !ok {
					return
				}
				if sig.Path != s.path() || sig.Name != ifaceName+".ScanDone" {
					continue
				}
				success := false
				if len(sig.Body) > 0 {
					success, _ = sig.Body[0].(bool)
				}
				select {
				case done <- success:
				default:
				}
			}
		}
	}()

	return func() {
		close(stop)
		s.conn.RemoveSignal(signals)
		_ = s.conn.RemoveMatchSignal(match...)
	}, nil
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
