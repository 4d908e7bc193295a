// Package risk statically scans documents for active content.
//
// A Scanner walks every object reachable from the trailer, including the
// catalog's /Names and /AcroForm trees and the document information
// dictionary, and matches dictionaries against a fixed rule table:
//
//	/S /JavaScript, /JS       JavaScript              high
//	/S /Launch                LaunchAction            high
//	/S /URI                   ExternalURI             medium, high when suspicious
//	/S /SubmitForm, /GoToR    ExternalURI             medium
//	/EF, /Type /EmbeddedFile  EmbeddedFile            medium
//	orphaned ObjStm members   SuspiciousObjectStream  low
//
// URI actions are escalated for IP-literal hosts, internationalized or
// punycode hosts, non-web schemes and link text naming a different
// registrable domain. Link text is the annotation's /Contents or, failing
// that, the page text drawn under its /Rect. Scripts are never evaluated
// and addresses are never resolved; descriptions report script sizes and
// targets only.
//
// Basic usage:
//
//	doc, err := document.Open(data)
//	if err != nil {
//	    return err
//	}
//	report, err := risk.NewScanner().Scan(ctx, doc)
//	if err != nil {
//	    return err
//	}
//	for _, f := range report.Findings {
//	    fmt.Println(f)
//	}
package risk
