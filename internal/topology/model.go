package topology

// SupportedVersion is the topology document version this build understands.
// Documents carrying any other version are rejected at load time.
const SupportedVersion = "1.0.0"

type DeviceStatus string

const (
	DeviceOnline      DeviceStatus = "online"
	DeviceOffline     DeviceStatus = "offline"
	DeviceMaintenance DeviceStatus = "maintenance"
)

func (s DeviceStatus) Valid() bool {
	switch s {
	case DeviceOnline, DeviceOffline, DeviceMaintenance:
		return true
	default:
		return false
	}
}

type LinkStatus string

const (
	LinkUp       LinkStatus = "up"
	LinkDown     LinkStatus = "down"
	LinkDegraded LinkStatus = "degraded"
	LinkBlocking LinkStatus = "blocking"
)

func (s LinkStatus) Valid() bool {
	switch s {
	case LinkUp, LinkDown, LinkDegraded, LinkBlocking:
		return true
	default:
		return false
	}
}

// DeviceType is the fiber-plant vocabulary used by the feed. The set is
// closed for styling purposes; unknown values still round-trip but render
// with the fallback style.
type DeviceType string

const (
	DeviceCoreNode   DeviceType = "Core Node"
	DevicePOP        DeviceType = "POP"
	DeviceODF        DeviceType = "ODF"
	DeviceNVt        DeviceType = "NVt"
	DeviceHUP        DeviceType = "HÜP"
	DeviceOLT        DeviceType = "OLT"
	DeviceSplitter   DeviceType = "Splitter"
	DeviceAONSwitch  DeviceType = "AON Switch"
	DeviceBusinessNT DeviceType = "Business NT"
	DeviceONT        DeviceType = "ONT"
)

// EndDeviceTypes are the subscriber-side terminations that carry a
// measurable optical signal level.
var EndDeviceTypes = []DeviceType{DeviceONT, DeviceBusinessNT}

func IsEndDevice(t DeviceType) bool {
	for _, e := range EndDeviceTypes {
		if t == e {
			return true
		}
	}
	return false
}

// Well-known property keys. The German keys come from the feed format and
// are part of the wire contract.
const (
	PropDataSource     = "data_source"
	PropLinkTechnology = "link_technology"
	PropLinkType       = "typ"
	PropBandwidthGbps  = "guaranteed_bandwidth_gbps"
	PropUtilization    = "utilization_percent"
	PropStandort       = "standort"
	PropPeering        = "peering"
)

// Link technology values for PropLinkTechnology.
const (
	TechPON = "PON"
	TechPtP = "PtP"
)

// Link type values for PropLinkType.
const (
	LinkTypeBackbone = "Backbone"
	LinkTypeRegional = "Regional"
)

// Data source tags for PropDataSource.
const (
	SourceNational     = "geojson"
	SourceLocalDefault = "rees_topology"
)

// Properties is the free-form per-entity property bag.
type Properties map[string]any

// String returns the property as a string, or "" when absent or not a string.
func (p Properties) String(key string) string {
	if p == nil {
		return ""
	}
	v, ok := p[key].(string)
	if !ok {
		return ""
	}
	return v
}

// Float returns the property as a float64. JSON numbers decode as float64;
// int values written programmatically are converted.
func (p Properties) Float(key string) (float64, bool) {
	if p == nil {
		return 0, false
	}
	switch v := p[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Clone returns a shallow copy; nested values are shared.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Coordinates is a [longitude, latitude] pair, matching the feed's GeoJSON
// ordering.
type Coordinates [2]float64

func (c Coordinates) Lon() float64 { return c[0] }
func (c Coordinates) Lat() float64 { return c[1] }

type Device struct {
	ID          string       `json:"id" yaml:"id"`
	Type        DeviceType   `json:"type" yaml:"type"`
	Status      DeviceStatus `json:"status" yaml:"status"`
	Coordinates *Coordinates `json:"coordinates,omitempty" yaml:"coordinates,omitempty"`
	Properties  Properties   `json:"properties,omitempty" yaml:"properties,omitempty"`
}

type Link struct {
	ID         string     `json:"id" yaml:"id"`
	Source     string     `json:"source" yaml:"source"`
	Target     string     `json:"target" yaml:"target"`
	Status     LinkStatus `json:"status" yaml:"status"`
	Properties Properties `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Technology returns the access technology of the link, defaulting to PON
// when the property is absent.
func (l Link) Technology() string {
	if t := l.Properties.String(PropLinkTechnology); t != "" {
		return t
	}
	return TechPON
}

// Ring is an ERPS redundancy ring. Only the RPL link's status is
// load-bearing; it decides the ring's blocking/forwarding display.
type Ring struct {
	ID        string   `json:"id" yaml:"id"`
	Name      string   `json:"name" yaml:"name"`
	Nodes     []string `json:"nodes,omitempty" yaml:"nodes,omitempty"`
	RPLLinkID string   `json:"rpl_link_id" yaml:"rpl_link_id"`
}

// Topology is a full feed document.
type Topology struct {
	Version string   `json:"version" yaml:"version"`
	Devices []Device `json:"devices" yaml:"devices"`
	Links   []Link   `json:"links" yaml:"links"`
	Rings   []Ring   `json:"rings,omitempty" yaml:"rings,omitempty"`
}
