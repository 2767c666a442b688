package view

// StylesheetPath is where the page expects Stylesheet to be served.
const StylesheetPath = "/static/app.css"

const Stylesheet = `.App {
  height: 100vh;
  background-color: #0d1116;
  overflow: scroll;
  text-align: center;
}
.container {
  height: 100%;
  background-color: #0d1116;
}
.header-container {
  padding-top: 30px;
}
.header {
  margin: 0;
  font-size: 50px;
  font-weight: bold;
}
.sub-text, .counter, .status, .account {
  font-size: 25px;
  color: white;
}
.gradient-text {
  background: -webkit-linear-gradient(left, #60c657 30%, #35aee2 60%);
  background-clip: text;
  -webkit-background-clip: text;
  -webkit-text-fill-color: transparent;
}
.cta-button {
  height: 45px;
  border: 0;
  width: auto;
  padding-left: 40px;
  padding-right: 40px;
  border-radius: 5px;
  cursor: pointer;
  font-size: 16px;
  font-weight: bold;
  color: white;
}
.cta-button:disabled {
  opacity: 0.5;
  cursor: not-allowed;
}
.connect-wallet-button {
  background: -webkit-linear-gradient(left, #60c657, #35aee2);
  background-size: 200% 200%;
}
.link-button {
  background: none;
  border: 0;
  color: #35aee2;
  cursor: pointer;
  text-decoration: underline;
}
.last-nft a, .tx-link a {
  color: #35aee2;
}
.footer-container {
  display: flex;
  justify-content: center;
  align-items: center;
  position: absolute;
  width: 100%;
  bottom: 0;
  padding-bottom: 45px;
}
.footer-text {
  color: white;
  font-size: 16px;
  font-weight: bold;
}
`
