// Package templates renders release job templates.
//
// Templates use Go text/template with a restricted sprig function set. Besides
// the sprig helpers, templates get BOSH-style property access:
//
//	{{ p "nats.port" 4222 }}
//	{{ if if_p "syslog.address" }}...{{ end }}
//
// and the bindings .Properties, .Index, .IP, .Name, .JobName and .Spec.
package templates
