// Package intercom renders the Intercom messenger loader as an injectable fragment.
package intercom

import (
	"html/template"
	"strings"

	"github.com/Suhaibinator/SInject/pkg/inject"
)

// DefaultAPIBase is the Intercom API region used when ScriptTags.APIBase is empty
const DefaultAPIBase = "https://api-iam.intercom.io"

var loaderTemplate = template.Must(template.New("intercom").Parse(`<script>
window.intercomSettings = {{.}};
</script>
<script>
(function(){var w=window;var ic=w.Intercom;if(typeof ic==="function"){ic('reattach_activator');ic('update',w.intercomSettings);}else{var d=document;var i=function(){i.c(arguments);};i.q=[];i.c=function(args){i.q.push(args);};w.Intercom=i;var l=function(){var s=d.createElement('script');s.type='text/javascript';s.async=true;s.src='https://widget.intercom.io/widget/'+w.intercomSettings.app_id;var x=d.getElementsByTagName('script')[0];x.parentNode.insertBefore(s,x);};if(d.readyState==='complete'){l();}else if(w.attachEvent){w.attachEvent('onload',l);}else{w.addEventListener('load',l,false);}}})();
</script>
`))

// ScriptTags produces the Intercom messenger snippet
type ScriptTags struct {
	// AppID is the Intercom workspace ID. No snippet is produced without one.
	AppID string

	// Enabled switches the snippet on. A disabled ScriptTags produces an empty fragment.
	Enabled bool

	// APIBase is the regional API endpoint. Defaults to DefaultAPIBase.
	APIBase string

	// Settings are extra window.intercomSettings entries, e.g. "hide_default_launcher".
	// They cannot override app_id or api_base.
	Settings map[string]any
}

// ForTemplate renders the snippet, or returns "" when disabled, unconfigured or unrenderable
func (s ScriptTags) ForTemplate() string {
	if !s.Enabled || strings.TrimSpace(s.AppID) == "" {
		return ""
	}

	settings := make(map[string]any, len(s.Settings)+2)
	for k, v := range s.Settings {
		settings[k] = v
	}
	settings["app_id"] = s.AppID
	settings["api_base"] = s.APIBase
	if s.APIBase == "" {
		settings["api_base"] = DefaultAPIBase
	}

	var sb strings.Builder
	if err := loaderTemplate.Execute(&sb, settings); err != nil {
		return ""
	}
	return sb.String()
}

// Provider returns ForTemplate as an inject.TagProvider
func (s ScriptTags) Provider() inject.TagProvider {
	return s.ForTemplate
}
