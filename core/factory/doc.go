// Package factory provides a small generic registry used to instantiate modules
// from configuration. A module is a type name plus a map of raw settings that
// the registered factory decodes into its own config struct.
//
// The metrics sinks are built this way:
//
//	reg := factory.NewRegistry[MetricsSink]()
//	_ = reg.Register("influx", func(conf map[string]any) (MetricsSink, error) {
//	    var c InfluxConfig
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return NewInfluxSink(c), nil
//	})
//	sink, err := reg.Create(factory.ModuleConfig{Type: "influx", Conf: map[string]any{"url": "http://influx:8086"}})
package factory
