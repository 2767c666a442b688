package view

import (
	"fmt"
	"html/template"
	"io"
)

// Page carries the static parts of the mint page.
type Page struct {
	Title         string
	Description   string
	FormToken     string
	TwitterHandle string
}

// CounterText is the live supply line under the header.
func CounterText(s Snapshot) string {
	if !s.CountsKnown {
		return "Connect your wallet to see how many have been minted."
	}
	return fmt.Sprintf("A total of %d out of %d have been minted.", s.MintCount, s.MaxSupply)
}

type pageData struct {
	Page
	Snapshot
	Counter    string
	Stylesheet string
}

// Render writes the page for snap. Output depends only on its arguments.
func Render(w io.Writer, page Page, snap Snapshot) error {
	return pageTemplate.Execute(w, pageData{Page: page, Snapshot: snap, Counter: CounterText(snap), Stylesheet: StylesheetPath})
}

var pageTemplate = template.Must(template.New("page").Parse(pageHTML))

const pageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<link rel="stylesheet" href="{{.Stylesheet}}">
</head>
<body>
<div class="App" data-version="{{.Version}}">
  <div class="container">
    <div class="header-container">
      <p class="header gradient-text">{{.Title}}</p>
      <p class="sub-text">{{.Description}}</p>
      <p class="counter" id="counter">{{.Counter}}</p>
      {{- if .LastMinted}}
      <p class="last-nft"><a id="last-minted" href="{{.LastMinted}}">Click here to view your NFT on OpenSea</a></p>
      {{- end}}
      {{- if .TxURL}}
      <p class="tx-link"><a id="tx-link" href="{{.TxURL}}">See transaction</a></p>
      {{- end}}
      {{- if .Status}}
      <p class="status" id="status">{{.Status}}</p>
      {{- end}}
      {{- if not .Connected}}
      <form method="post" action="/connect">
        <input type="hidden" name="token" value="{{.FormToken}}">
        <input type="password" name="passphrase" placeholder="Wallet passphrase">
        <button type="submit" id="connect" class="cta-button connect-wallet-button">Connect to Wallet</button>
      </form>
      {{- else}}
      <p class="account">Connected as {{.Account}}</p>
      <form method="post" action="/mint">
        <input type="hidden" name="token" value="{{.FormToken}}">
        <button type="submit" id="mint" class="cta-button connect-wallet-button"{{if .InProgress}} disabled{{end}}>Mint NFT</button>
      </form>
      <form method="post" action="/disconnect">
        <input type="hidden" name="token" value="{{.FormToken}}">
        <button type="submit" id="disconnect" class="link-button">Disconnect</button>
      </form>
      {{- end}}
      {{- if .InProgress}}
      <div class="mint-animation-container" id="minting"><span class="pick-axe">Mining... please wait.</span></div>
      {{- end}}
    </div>
    {{- if .TwitterHandle}}
    <div class="footer-container">
      <a class="footer-text" href="https://twitter.com/{{.TwitterHandle}}" target="_blank" rel="noreferrer">built on @{{.TwitterHandle}}</a>
    </div>
    {{- end}}
  </div>
</div>
<script>
(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "/ws");
  var seen = {{.Version}};
  ws.onmessage = function (msg) {
    var snap = JSON.parse(msg.data);
    if (snap.version > seen) { location.reload(); }
  };
})();
</script>
</body>
</html>
`
