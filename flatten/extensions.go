package flatten

import (
	"fmt"

	ff "github.com/fhirflat/fhirflat"
)

// flattenExtensions turns an extension list into "extension.<url>" columns.
//
//	[{"url": "relativeDay", "valueInteger": 2},
//	 {"url": "approximateDate", "valueDate": "2012-09"}]
//
// becomes "extension.relativeDay" = 2, "extension.approximateDate" =
// "2012-09". Complex extensions recurse with their url as a path segment.
func flattenExtensions(flat map[string]any, prefix string, value any) []ff.Issue {
	list, ok := value.([]any)
	if !ok {
		return []ff.Issue{
			ff.Error(ff.IssueTypeExtension).
				Diagnostics("extension element is not a list").At(prefix).Build(),
		}
	}

	var issues []ff.Issue
	for _, item := range list {
		ext, ok := item.(map[string]any)
		if !ok {
			issues = append(issues, ff.Error(ff.IssueTypeExtension).
				Diagnostics("extension entry is not an object").At(prefix).Build())
			continue
		}

		url, _ := ext["url"].(string)
		if url == "" {
			issues = append(issues, ff.Error(ff.IssueTypeExtension).
				Diagnostics("extension entry has no url").At(prefix).Build())
			continue
		}

		name := prefix + "." + url

		// Nested extension: recurse under the url.
		if nested, ok := ext["extension"]; ok {
			issues = append(issues, flattenExtensions(flat, name, nested)...)
			continue
		}

		valueKey, value := extensionValue(ext)
		if valueKey == "" {
			issues = append(issues, ff.Error(ff.IssueTypeExtension).
				Diagnostics(fmt.Sprintf("extension %q carries no value", url)).At(name).Build())
			continue
		}

		issues = append(issues, flattenValue(flat, name, value)...)
	}

	return issues
}

// extensionValue finds the single populated value[x] entry of an extension.
func extensionValue(ext map[string]any) (string, any) {
	for k, v := range ext {
		if k == "url" || k == "extension" || v == nil {
			continue
		}
		if len(k) > 5 && k[:5] == "value" {
			return k, v
		}
	}
	return "", nil
}
