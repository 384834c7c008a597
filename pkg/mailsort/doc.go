// Package mailsort classifies email text into business categories using a
// TF-IDF vectorizer and a trained classifier loaded from disk.
//
// Quick start:
//
//	c, err := mailsort.New(mailsort.WithModelDir("models/"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//	if !c.Ready() {
//	    log.Fatal(c.LoadErr())
//	}
//
//	r := c.Predict("URGENT: Server is down! Need immediate action.")
//	fmt.Println(r.Category, r.Confidence) // Urgent 94.8
//
// A Classifier whose artifacts failed to load is still usable: every
// prediction fails with "model not loaded". The Classifier is safe for
// concurrent use. Create once, reuse across requests.
package mailsort
