// Package ruleset loads named routing rule sets from YAML files.
//
// Each *.yaml or *.yml file in the rules directory holds one rule set:
//
//	name: orders
//	fallback: manual_review
//	rules:
//	  - name: large
//	    when:
//	      AND:
//	        - amount: {">": 1000}
//	        - currency: {"IN": [EUR, USD]}
//	    target: review
//	  - name: same-country
//	    when: {ship_country: {"=": '[bill_country]'}}
//	    target: ship
//
// References must be quoted in YAML ('[bill_country]'); unquoted brackets are
// read as a list. A Watcher reloads the Registry when files change.
package ruleset
