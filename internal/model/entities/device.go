package entities

// DeviceInfo is the static metadata attached to every decoded reading.
type DeviceInfo struct {
	NodeType        string `json:"nodeType" mapstructure:"node_type"`
	PlatformType    string `json:"platformType" mapstructure:"platform_type"`
	RadioType       string `json:"radioType" mapstructure:"radio_type"`
	ApplicationName string `json:"applicationName" mapstructure:"application_name"`
}

// DefaultDeviceInfo describes a stock Model 4916 node.
func DefaultDeviceInfo() DeviceInfo {
	return DeviceInfo{
		NodeType:        "Model 4916",
		PlatformType:    "Model 4916",
		RadioType:       "Murata",
		ApplicationName: "MultiGas sensor",
	}
}

// WithDefaults fills empty members from DefaultDeviceInfo.
func (d DeviceInfo) WithDefaults() DeviceInfo {
	def := DefaultDeviceInfo()
	if d.NodeType == "" {
		d.NodeType = def.NodeType
	}
	if d.PlatformType == "" {
		d.PlatformType = def.PlatformType
	}
	if d.RadioType == "" {
		d.RadioType = def.RadioType
	}
	if d.ApplicationName == "" {
		d.ApplicationName = def.ApplicationName
	}
	return d
}
